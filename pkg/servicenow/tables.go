package servicenow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	ciTable    = "cmdb_ci"
	auditTable = "sys_audit"
	userTable  = "sys_user"
)

// ProfileChangeTag is written into the audit_type field of every row returned
// by FetchUserAudit.
const ProfileChangeTag = "user_profile_change"

var (
	ciFields = []string{
		"sys_id", "name", "short_description", "sys_class_name", "sys_updated_on",
		"assigned_to", "assigned_to.user_name", "assigned_to.name", "assigned_to.sys_id",
	}
	ciLookupFields = []string{
		"sys_id", "assigned_to", "name", "sys_class_name", "assigned_to.user_name", "assigned_to.name",
	}
	auditFields = []string{
		"sys_created_on", "tablename", "fieldname", "documentkey",
		"user", "user.user_name", "user.name", "user.sys_id", "oldvalue", "newvalue",
	}
	userFields = []string{
		"sys_id", "user_name", "name", "email", "active", "sys_created_on", "department", "title",
	}

	// TrackedProfileFields are the sys_user fields whose audit history is
	// read as profile changes.
	TrackedProfileFields = []string{
		"title", "department", "manager", "active", "job_title", "u_job_title",
		"cost_center", "location", "company", "u_account_type", "u_team_structure",
		"u_compliance_certified", "u_additional_responsibilities", "u_vendor_status",
		"u_work_arrangement", "u_coverage_status", "u_employee_type", "building",
		"employee_number", "u_leave_type", "skills", "u_acquisition_date", "vip",
		"u_specialization", "u_on_call", "locked_out", "last_login_time",
		"u_focus_area", "u_methodology", "u_service_model", "u_additional_servers",
	}
)

// ciAuditQuery selects audit rows for every CMDB class table.
const ciAuditQuery = "tablenameSTARTSWITHcmdb_ci^ORDERBYDESCsys_created_on"

func userAuditQuery(lookbackDays int) string {
	return fmt.Sprintf(
		"tablename=%s^fieldnameIN%s^sys_created_onONLast %d days@javascript:gs.daysAgoStart(%d)@javascript:gs.daysAgoEnd(0)^ORDERBYDESCsys_created_on",
		userTable, strings.Join(TrackedProfileFields, ","), lookbackDays, lookbackDays,
	)
}

func (c *httpClient) FetchCIs(ctx context.Context, limit int) ([]Record, error) {
	rows, err := c.list(ctx, ciTable, ciFields, "", true, limit)
	return rows, eris.Wrap(err, "servicenow: fetch cis")
}

func (c *httpClient) FetchCIAudit(ctx context.Context, limit int) ([]Record, error) {
	rows, err := c.list(ctx, auditTable, auditFields, ciAuditQuery, true, limit)
	return rows, eris.Wrap(err, "servicenow: fetch ci audit")
}

func (c *httpClient) FetchUserAudit(ctx context.Context, lookbackDays, limit int) ([]Record, error) {
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	rows, err := c.list(ctx, auditTable, auditFields, userAuditQuery(lookbackDays), true, limit)
	if err != nil {
		return nil, eris.Wrap(err, "servicenow: fetch user audit")
	}
	for _, r := range rows {
		r["audit_type"] = ProfileChangeTag
	}
	return rows, nil
}

func (c *httpClient) FetchUsers(ctx context.Context, limit int) ([]Record, error) {
	rows, err := c.list(ctx, userTable, userFields, "", false, limit)
	return rows, eris.Wrap(err, "servicenow: fetch users")
}

// list pages through a table with sysparm_offset until a short page or the
// record limit. A limit of zero reads everything.
func (c *httpClient) list(ctx context.Context, table string, fields []string, query string, displayAll bool, limit int) ([]Record, error) {
	var out []Record
	offset := 0
	for {
		pageSize := c.pageSize
		if limit > 0 && limit-len(out) < pageSize {
			pageSize = limit - len(out)
		}

		q := url.Values{
			"sysparm_limit":  {itoa(pageSize)},
			"sysparm_offset": {itoa(offset)},
			"sysparm_fields": {strings.Join(fields, ",")},
		}
		if displayAll {
			q.Set("sysparm_display_value", "all")
		}
		if query != "" {
			q.Set("sysparm_query", query)
		}

		var resp listResponse
		if err := c.do(ctx, http.MethodGet, tablePath(table, ""), q, nil, &resp); err != nil {
			return nil, eris.Wrapf(err, "list %s at offset %d", table, offset)
		}
		out = append(out, resp.Result...)
		offset += len(resp.Result)

		if len(resp.Result) < pageSize || (limit > 0 && len(out) >= limit) {
			break
		}
	}

	zap.L().Debug("servicenow: listed table",
		zap.String("table", table),
		zap.Int("records", len(out)),
	)
	if out == nil {
		out = []Record{}
	}
	return out, nil
}
