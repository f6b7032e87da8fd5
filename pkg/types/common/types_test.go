package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_Validate_ValidUUID(t *testing.T) {
	id := ID("550e8400-e29b-41d4-a716-446655440000")
	assert.NoError(t, id.Validate())
}

func TestID_Validate_EmptyString(t *testing.T) {
	err := ID("").Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestID_Validate_InvalidFormat(t *testing.T) {
	err := ID("not-a-uuid").Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ID format")
}

func TestNewID_GeneratesValidUUID(t *testing.T) {
	assert.NoError(t, NewID().Validate())
}

func TestTimestamp_JSONRoundTrip(t *testing.T) {
	ts := Timestamp(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `"2026-03-14T09:26:53Z"`, string(data))

	var back Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, ts.Time().Equal(back.Time()))
}

func TestTimestamp_UnmarshalAcceptsSecondsPrecision(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2026-01-02T15:04:05Z"`), &ts))
	assert.Equal(t, 2026, ts.Time().Year())
}

func TestTimestamp_UnmarshalRejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`42`), &ts))
}

func TestPagination_Validate(t *testing.T) {
	cases := []struct {
		name    string
		p       Pagination
		wantErr bool
	}{
		{"valid", Pagination{Page: 1, PageSize: 20}, false},
		{"max page size", Pagination{Page: 3, PageSize: 500}, false},
		{"zero page", Pagination{Page: 0, PageSize: 20}, true},
		{"zero page size", Pagination{Page: 1, PageSize: 0}, true},
		{"oversized page size", Pagination{Page: 1, PageSize: 501}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPagination_Offset(t *testing.T) {
	assert.Equal(t, 0, Pagination{Page: 1, PageSize: 25}.Offset())
	assert.Equal(t, 50, Pagination{Page: 3, PageSize: 25}.Offset())
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse([]string{"x0034_0B"})
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"x0034_0B"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("SEL_001", "grow requires exactly one selected fragment")
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SEL_001", resp.Error.Code)
}

func TestAPIResponse_JSONOmitsEmptyError(t *testing.T) {
	resp := NewSuccessResponse(map[string]int{"loaded": 12})
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)
}
