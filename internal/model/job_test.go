package model_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixiebatch/internal/model"
)

func sampleJob() *model.Job {
	return &model.Job{
		JobID:          7,
		User:           "me",
		Project:        "p0",
		Simulation:     map[string]any{"duration": float64(10)},
		Interactive:    false,
		Notify:         nil,
		Post:           nil,
		Permissions:    model.NewStringPermissions("public"),
		Outfile:        "/sims/7.h5",
		PID:            1234,
		QueueStartTime: 1000.0,
	}
}

func TestEncodeSortsKeysAndIndents(t *testing.T) {
	j := sampleJob()
	out, err := j.Encode()
	require.NoError(t, err)

	s := string(out)
	// "endtime" would sort before "err" before "interactive" before "jobid";
	// assert a representative ascending pair to confirm key sort.
	assert.Less(t, strings.Index(s, `"interactive"`), strings.Index(s, `"jobid"`))
	assert.Less(t, strings.Index(s, `"jobid"`), strings.Index(s, `"notify"`))
	assert.True(t, strings.HasPrefix(s, "{\n"), "expected stable indent, got %q", s)
}

func TestDecodeRoundTrip(t *testing.T) {
	j := sampleJob()
	out, err := j.Encode()
	require.NoError(t, err)

	got, err := model.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, j.JobID, got.JobID)
	assert.Equal(t, j.User, got.User)
	assert.Equal(t, j.Simulation, got.Simulation)
	assert.True(t, got.Permissions.IsPublic())
	assert.Nil(t, got.ReturnCode)
}

func TestDecodeEmptyReturnsSentinel(t *testing.T) {
	_, err := model.Decode(nil)
	assert.ErrorIs(t, err, model.ErrEmptyRead)

	_, err = model.Decode([]byte("   \n\t"))
	assert.ErrorIs(t, err, model.ErrEmptyRead)
}

func TestDecodeToleratesMissingNewerFields(t *testing.T) {
	// A record written before queue_endtime/starttime/returncode existed.
	old := `{"jobid":1,"user":"me","project":"","simulation":{},"interactive":false,` +
		`"notify":[],"post":[],"permissions":"public","outfile":"/x","pid":1,` +
		`"queue_starttime":1.0}`
	got, err := model.Decode([]byte(old))
	require.NoError(t, err)
	assert.Nil(t, got.QueueEndTime)
	assert.Nil(t, got.StartTime)
	assert.Nil(t, got.ReturnCode)
}

func TestDecodeNormalizesDriftedQueueEndTime(t *testing.T) {
	// Historical records spell the field "queued_endtime".
	legacy := `{"jobid":1,"user":"me","project":"","simulation":{},"interactive":false,` +
		`"notify":[],"post":[],"permissions":"public","outfile":"/x","pid":1,` +
		`"queue_starttime":1.0,"queued_endtime":2.5}`
	got, err := model.Decode([]byte(legacy))
	require.NoError(t, err)
	require.NotNil(t, got.QueueEndTime)
	assert.Equal(t, 2.5, *got.QueueEndTime)
}

func TestCancelBackfillsAbsentTimes(t *testing.T) {
	j := sampleJob()
	j.Cancel("Job was canceled externally", 2000.0)

	require.NotNil(t, j.QueueEndTime)
	require.NotNil(t, j.StartTime)
	require.NotNil(t, j.EndTime)
	assert.Equal(t, 2000.0, *j.QueueEndTime)
	assert.Equal(t, 2000.0, *j.StartTime)
	assert.Equal(t, 2000.0, *j.EndTime)
	require.NotNil(t, j.ReturnCode)
	assert.Equal(t, 1, *j.ReturnCode)
	assert.Nil(t, j.Out)
	require.NotNil(t, j.Err)
	assert.Equal(t, "Job was canceled externally", *j.Err)
}

func TestCancelPreservesExistingTimes(t *testing.T) {
	j := sampleJob()
	qe := 1500.0
	st := 1600.0
	j.QueueEndTime = &qe
	j.StartTime = &st

	j.Cancel("Job was canceled externally", 2000.0)
	assert.Equal(t, 1500.0, *j.QueueEndTime)
	assert.Equal(t, 1600.0, *j.StartTime)
}

func TestPermissionsListForm(t *testing.T) {
	got, err := model.Decode([]byte(`{"jobid":1,"user":"me","project":"","simulation":{},` +
		`"interactive":false,"notify":[],"post":[],"permissions":["alice","bob"],` +
		`"outfile":"/x","pid":1,"queue_starttime":1.0}`))
	require.NoError(t, err)
	assert.False(t, got.Permissions.IsPublic())
}

func TestJobViewMarshalNilSlicesAsEmpty(t *testing.T) {
	j := sampleJob()
	v := model.JobView{Job: *j, Status: model.StatusCompleted}
	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"notify":[]`)
	assert.Contains(t, string(out), `"post":[]`)
	assert.Contains(t, string(out), `"status":"completed"`)
}

func TestStatusValid(t *testing.T) {
	for _, s := range model.Statuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, model.Status("bogus").Valid())
}
