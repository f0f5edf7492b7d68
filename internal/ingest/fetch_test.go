package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/pkg/servicenow/mocks"
)

func TestFetch_MergesAuditSets(t *testing.T) {
	c := mocks.NewMockClient(t)
	c.On("FetchCIs", mock.Anything, 100).Return([]Record{{"sys_id": "ci1"}}, nil)
	c.On("FetchCIAudit", mock.Anything, 200).Return([]Record{{"documentkey": "ci1", "fieldname": "ip_address"}}, nil)
	c.On("FetchUserAudit", mock.Anything, 90, 50).Return([]Record{{"documentkey": "u1", "fieldname": "title", "audit_type": ProfileChangeTag}}, nil)
	c.On("FetchUsers", mock.Anything, 0).Return([]Record{{"sys_id": "u1", "user_name": "jdoe"}}, nil)
	c.On("InstanceURL").Return("https://dev1234.service-now.com")

	raw, err := Fetch(context.Background(), c, FetchOptions{
		MaxCIs: 100, MaxAudit: 200, MaxUserAudit: 50, UserAuditLookbackDays: 90,
	})
	require.NoError(t, err)
	assert.Len(t, raw.CIs, 1)
	assert.Len(t, raw.Users, 1)
	require.Len(t, raw.Audit, 2)
	assert.Equal(t, "ci1", raw.Audit[0]["documentkey"])
	assert.Equal(t, "u1", raw.Audit[1]["documentkey"])

	snap := Canonicalize(*raw)
	require.Len(t, snap.Audit, 2)
	assert.Equal(t, model.AuditKindCIChange, snap.Audit[0].Kind)
	assert.Equal(t, model.AuditKindProfileChange, snap.Audit[1].Kind)
}

func TestFetch_PropagatesError(t *testing.T) {
	c := mocks.NewMockClient(t)
	c.On("FetchCIs", mock.Anything, 0).Return(nil, errors.New("boom"))
	c.On("FetchCIAudit", mock.Anything, 0).Return([]Record{}, nil).Maybe()
	c.On("FetchUserAudit", mock.Anything, 0, 0).Return([]Record{}, nil).Maybe()
	c.On("FetchUsers", mock.Anything, 0).Return([]Record{}, nil).Maybe()

	_, err := Fetch(context.Background(), c, FetchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: fetch snapshot")
	assert.Contains(t, err.Error(), "boom")
}

func TestFetchOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.ServiceNow.MaxRecords.CIs = 10
	cfg.ServiceNow.MaxRecords.Audit = 20
	cfg.ServiceNow.MaxRecords.UserAudit = 30
	cfg.ServiceNow.MaxRecords.Users = 40
	cfg.Scan.UserAuditLookbackDays = 60

	assert.Equal(t, FetchOptions{MaxCIs: 10, MaxAudit: 20, MaxUserAudit: 30, MaxUsers: 40, UserAuditLookbackDays: 60},
		FetchOptionsFromConfig(cfg))
}
