package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/neuromem/bankcore/internal/bank"
	"github.com/neuromem/bankcore/internal/types"
	"github.com/neuromem/bankcore/pkg/memory"
)

// dirFlags binds the directory and index-kind flags every bank-scoped
// command shares.
type dirFlags struct {
	dir    string
	ivfK   int
	ivfNP  int
	useIvf bool
}

func bindDirFlags(cmd *cobra.Command, f *dirFlags) {
	cmd.Flags().StringVar(&f.dir, "dir", ".", "bank directory")
	cmd.Flags().BoolVar(&f.useIvf, "ivf", false, "reconstruct banks with an IVF index instead of brute force")
	cmd.Flags().IntVar(&f.ivfK, "ivf-k", 16, "IVF cluster count (with --ivf)")
	cmd.Flags().IntVar(&f.ivfNP, "ivf-nprobe", 4, "IVF probe count (with --ivf)")
}

func (f *dirFlags) indexKind() bank.IndexKind {
	if f.useIvf {
		return bank.Ivf(f.ivfK, f.ivfNP)
	}
	return bank.BruteForce()
}

// openExisting opens an already-bootstrapped directory, replaying its
// snapshots and journal.
func openExisting(f *dirFlags) (*memory.Engine, error) {
	logger := log.New(os.Stderr, "bankctl: ", 0)
	e, err := memory.Open(f.dir, f.indexKind(), logger)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.dir, err)
	}
	return e, nil
}

// resolveBank finds the bank named name among e's loaded banks.
func resolveBank(e *memory.Engine, name string) (*bank.DataBank, error) {
	for _, b := range e.Cluster().Banks() {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no bank named %q in %s", name, e.Dir())
}

// resolveBankID is resolveBank for callers that only need the id, e.g.
// to build a BankRef without locking in on a *bank.DataBank.
func resolveBankID(e *memory.Engine, name string) (types.BankId, error) {
	b, err := resolveBank(e, name)
	if err != nil {
		return 0, err
	}
	return b.Id(), nil
}

// parseValues splits a comma-separated list of signed integers into a
// flat []int32, the to_i32 representation consumed by Insert/Query.
func parseValues(raw string) ([]int32, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", p, err)
		}
		out[i] = int32(v)
	}
	return out, nil
}

func toVector(values []int32) []types.Signal {
	out := make([]types.Signal, len(values))
	for i, v := range values {
		out[i] = types.FromSigned(v)
	}
	return out
}

func fromVector(vector []types.Signal) []int32 {
	out := make([]int32, len(vector))
	for i, s := range vector {
		out[i] = s.Signed()
	}
	return out
}

var temperatureByName = map[string]types.Temperature{
	"hot": types.Hot, "warm": types.Warm, "cool": types.Cool, "cold": types.Cold,
}

func parseTemperature(name string) (types.Temperature, error) {
	t, ok := temperatureByName[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown temperature %q (want hot, warm, cool or cold)", name)
	}
	return t, nil
}

var edgeKindByName = map[string]types.EdgeKind{
	"isa": types.IsA, "hasa": types.HasA, "partof": types.PartOf,
	"relatedto": types.RelatedTo, "similarto": types.SimilarTo, "oppositeof": types.OppositeOf,
	"causes": types.Causes, "precedes": types.Precedes, "enables": types.Enables,
	"lookslike": types.LooksLike, "soundslike": types.SoundsLike, "feelslike": types.FeelsLike,
	"cooccurred": types.CoOccurred, "followedby": types.FollowedBy,
	"custom": types.Custom, "any": types.Any,
}

func parseEdgeKind(name string) (types.EdgeKind, error) {
	k, ok := edgeKindByName[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown edge kind %q", name)
	}
	return k, nil
}

// parseEntryID accepts the decimal form printed by this CLI's own
// insert/query output.
func parseEntryID(raw string) (types.EntryId, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q: %w", raw, err)
	}
	return types.EntryId(v), nil
}

// defaultTick gives CLI invocations a sensible logical clock value
// when the caller has no tick source of their own: wall-clock seconds.
func defaultTick() uint64 {
	return uint64(time.Now().Unix())
}
