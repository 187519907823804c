package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitCommand(t *testing.T) {
	cmd := newInitCommand()
	assert.Equal(t, "init [path]", cmd.Use)
}

func TestInitCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "engine")

	var out bytes.Buffer
	cmd := newInitCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{target})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Initialized empty bank directory")
	assert.DirExists(t, target)
}

func TestInsertQueryCountRoundTrip(t *testing.T) {
	dir := t.TempDir()

	initCmd := newInitCommand()
	initCmd.SetOut(&bytes.Buffer{})
	initCmd.SetArgs([]string{dir})
	require.NoError(t, initCmd.Execute())

	var insertOut bytes.Buffer
	insertCmd := newInsertCommand()
	insertCmd.SetOut(&insertOut)
	insertCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--values", "255,0,0,0"})
	require.NoError(t, insertCmd.Execute())
	firstID := strings.TrimSpace(insertOut.String())
	require.NotEmpty(t, firstID)

	var insertOut2 bytes.Buffer
	insertCmd2 := newInsertCommand()
	insertCmd2.SetOut(&insertOut2)
	insertCmd2.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--values", "0,255,0,0"})
	require.NoError(t, insertCmd2.Execute())

	var countOut bytes.Buffer
	countCmd := newCountCommand()
	countCmd.SetOut(&countOut)
	countCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic"})
	require.NoError(t, countCmd.Execute())
	assert.Equal(t, "2\n", countOut.String())

	var queryOut bytes.Buffer
	queryCmd := newQueryCommand()
	queryCmd.SetOut(&queryOut)
	queryCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--values", "255,0,0,0", "--top-k", "1"})
	require.NoError(t, queryCmd.Execute())
	assert.Contains(t, queryOut.String(), firstID)

	var loadOut bytes.Buffer
	loadCmd := newLoadCommand()
	loadCmd.SetOut(&loadOut)
	loadCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--entry", firstID})
	require.NoError(t, loadCmd.Execute())
	assert.Equal(t, "255,0,0,0\n", loadOut.String())
}

func TestInsertReusesBankAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	initCmd := newInitCommand()
	initCmd.SetOut(&bytes.Buffer{})
	initCmd.SetArgs([]string{dir})
	require.NoError(t, initCmd.Execute())

	for i := 0; i < 3; i++ {
		insertCmd := newInsertCommand()
		insertCmd.SetOut(&bytes.Buffer{})
		insertCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--values", "1,1,1"})
		require.NoError(t, insertCmd.Execute())
	}

	var statsOut bytes.Buffer
	statsCmd := newStatsCommand()
	statsCmd.SetOut(&statsOut)
	statsCmd.SetArgs([]string{"--dir", dir})
	require.NoError(t, statsCmd.Execute())
	lines := strings.Split(strings.TrimSpace(statsOut.String()), "\n")
	require.Len(t, lines, 1, "three inserts under the same --bank name must land in one bank")
	assert.Contains(t, lines[0], "entries=3")
}

func TestLinkAndTraverseAcrossBanks(t *testing.T) {
	dir := t.TempDir()
	initCmd := newInitCommand()
	initCmd.SetOut(&bytes.Buffer{})
	initCmd.SetArgs([]string{dir})
	require.NoError(t, initCmd.Execute())

	var srcOut, dstOut bytes.Buffer
	srcInsert := newInsertCommand()
	srcInsert.SetOut(&srcOut)
	srcInsert.SetArgs([]string{"--dir", dir, "--bank", "src", "--values", "1"})
	require.NoError(t, srcInsert.Execute())
	srcID := strings.TrimSpace(srcOut.String())

	dstInsert := newInsertCommand()
	dstInsert.SetOut(&dstOut)
	dstInsert.SetArgs([]string{"--dir", dir, "--bank", "dst", "--values", "1"})
	require.NoError(t, dstInsert.Execute())
	dstID := strings.TrimSpace(dstOut.String())

	linkCmd := newLinkCommand()
	linkCmd.SetOut(&bytes.Buffer{})
	linkCmd.SetArgs([]string{
		"--dir", dir, "--src-bank", "src", "--src-entry", srcID,
		"--dst-bank", "dst", "--dst-entry", dstID, "--kind", "RelatedTo",
	})
	require.NoError(t, linkCmd.Execute())

	var traverseOut bytes.Buffer
	traverseCmd := newTraverseCommand()
	traverseCmd.SetOut(&traverseOut)
	traverseCmd.SetArgs([]string{"--dir", dir, "--bank", "src", "--entry", srcID, "--kind", "Any", "--depth", "2"})
	require.NoError(t, traverseCmd.Execute())
	assert.Contains(t, traverseOut.String(), "dst\t"+dstID)
}

func TestEvictThenCountReflectsRemoval(t *testing.T) {
	dir := t.TempDir()
	initCmd := newInitCommand()
	initCmd.SetOut(&bytes.Buffer{})
	initCmd.SetArgs([]string{dir})
	require.NoError(t, initCmd.Execute())

	for i := 0; i < 2; i++ {
		insertCmd := newInsertCommand()
		insertCmd.SetOut(&bytes.Buffer{})
		insertCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--values", "1"})
		require.NoError(t, insertCmd.Execute())
	}

	evictCmd := newEvictCommand()
	var evictOut bytes.Buffer
	evictCmd.SetOut(&evictOut)
	evictCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--n", "1"})
	require.NoError(t, evictCmd.Execute())
	assert.Equal(t, "1\n", evictOut.String())

	var countOut bytes.Buffer
	countCmd := newCountCommand()
	countCmd.SetOut(&countOut)
	countCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic"})
	require.NoError(t, countCmd.Execute())
	assert.Equal(t, "1\n", countOut.String())
}

func TestDeleteThenCountReflectsRemoval(t *testing.T) {
	dir := t.TempDir()
	initCmd := newInitCommand()
	initCmd.SetOut(&bytes.Buffer{})
	initCmd.SetArgs([]string{dir})
	require.NoError(t, initCmd.Execute())

	var insertOut bytes.Buffer
	insertCmd := newInsertCommand()
	insertCmd.SetOut(&insertOut)
	insertCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--values", "1"})
	require.NoError(t, insertCmd.Execute())
	id := strings.TrimSpace(insertOut.String())

	deleteCmd := newDeleteCommand()
	deleteCmd.SetOut(&bytes.Buffer{})
	deleteCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--entry", id})
	require.NoError(t, deleteCmd.Execute())

	var countOut bytes.Buffer
	countCmd := newCountCommand()
	countCmd.SetOut(&countOut)
	countCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic"})
	require.NoError(t, countCmd.Execute())
	assert.Equal(t, "0\n", countOut.String())
}

func TestFlushSnapshotWritesBankFile(t *testing.T) {
	dir := t.TempDir()
	initCmd := newInitCommand()
	initCmd.SetOut(&bytes.Buffer{})
	initCmd.SetArgs([]string{dir})
	require.NoError(t, initCmd.Execute())

	insertCmd := newInsertCommand()
	insertCmd.SetOut(&bytes.Buffer{})
	insertCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--values", "1"})
	require.NoError(t, insertCmd.Execute())

	flushCmd := newFlushCommand()
	flushCmd.SetOut(&bytes.Buffer{})
	flushCmd.SetArgs([]string{"--dir", dir, "--snapshot"})
	require.NoError(t, flushCmd.Execute())

	matches, err := filepath.Glob(filepath.Join(dir, "*.bank"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestReopenAfterProcessExitSeesPriorInserts(t *testing.T) {
	dir := t.TempDir()
	initCmd := newInitCommand()
	initCmd.SetOut(&bytes.Buffer{})
	initCmd.SetArgs([]string{dir})
	require.NoError(t, initCmd.Execute())

	var insertOut bytes.Buffer
	insertCmd := newInsertCommand()
	insertCmd.SetOut(&insertOut)
	insertCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--values", "9"})
	require.NoError(t, insertCmd.Execute())
	id := strings.TrimSpace(insertOut.String())

	// A brand new command invocation (as a real second process would
	// make) must see the previous insert's effect via journal replay,
	// with no explicit flush/snapshot step in between.
	var loadOut bytes.Buffer
	loadCmd := newLoadCommand()
	loadCmd.SetOut(&loadOut)
	loadCmd.SetArgs([]string{"--dir", dir, "--bank", "semantic", "--entry", id})
	require.NoError(t, loadCmd.Execute())
	assert.Equal(t, "9\n", loadOut.String())
}
