package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SeedsInitialValues(t *testing.T) {
	t.Parallel()
	st := New(map[string]any{"input": "hello", "count": 3})

	v, ok := st.Get("input")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.True(t, st.LastActionSuccess)
	assert.Empty(t, st.StepLog())
}

func TestState_SetAndFields(t *testing.T) {
	t.Parallel()
	st := New(nil)
	st.Set("a", 1)
	st.Set("b", "two")

	fields := st.Fields([]string{"a", "b", "missing"})
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, fields)
	assert.False(t, st.Has("missing"))
	assert.ElementsMatch(t, []string{"a", "b"}, st.Keys())
}

func TestState_Fields_AbsentKeysSkipped(t *testing.T) {
	t.Parallel()
	st := New(map[string]any{"present": true})

	fields := st.Fields([]string{"present", "absent"})
	assert.Len(t, fields, 1)
	_, ok := fields["absent"]
	assert.False(t, ok)
}

func TestState_Clone_Independent(t *testing.T) {
	t.Parallel()
	st := New(map[string]any{"shared": "base"})
	st.AppendStep(StepRecord{Node: "first", Success: true})

	clone := st.Clone()
	assert.Empty(t, clone.WrittenKeys(), "clone starts with a fresh write journal")

	clone.Set("branch_only", 42)
	clone.LastActionSuccess = false

	assert.False(t, st.Has("branch_only"))
	assert.True(t, st.LastActionSuccess)
	assert.Equal(t, 1, clone.StepCount())
	clone.Set("x", 1)
	assert.Equal(t, []string{"branch_only", "x"}, sorted(clone.WrittenKeys()))
}

func TestState_MergeWrites_OnlyJournaledKeys(t *testing.T) {
	t.Parallel()
	st := New(map[string]any{"base": "v"})
	st.AppendStep(StepRecord{Node: "fork_origin", Success: true})
	forkLog := st.StepCount()

	branch := st.Clone()
	branch.Set("branch_out", "result")
	branch.AppendStep(StepRecord{Node: "branch_node", Success: true})

	st.MergeWrites(branch, forkLog)

	v, ok := st.Get("branch_out")
	require.True(t, ok)
	assert.Equal(t, "result", v)

	log := st.StepLog()
	require.Len(t, log, 2)
	assert.Equal(t, "fork_origin", log[0].Node)
	assert.Equal(t, "branch_node", log[1].Node)
}

func TestState_StepLog_AppendOnlyCopy(t *testing.T) {
	t.Parallel()
	st := New(nil)
	st.AppendStep(StepRecord{Node: "a", Timestamp: time.Now(), Success: true})

	log := st.StepLog()
	log[0].Node = "mutated"

	assert.Equal(t, "a", st.StepLog()[0].Node)
}

func TestState_Snapshot(t *testing.T) {
	t.Parallel()
	st := New(map[string]any{"k": "v"})
	snap := st.Snapshot()
	snap["k"] = "changed"

	v, _ := st.Get("k")
	assert.Equal(t, "v", v)
}

func sorted(keys []string) []string {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
