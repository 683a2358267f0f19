// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package cmd

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/innovationmech/assetsaga/internal/assetsaga/deps"
	"github.com/innovationmech/assetsaga/pkg/saga"
	"github.com/innovationmech/assetsaga/pkg/saga/storage"
	"github.com/innovationmech/assetsaga/pkg/security/jwt"
)

const testSecret = "cmd-test-secret"

// sharedStore survives the Close issued after every command.
type sharedStore struct {
	*storage.MemoryRecordStore
}

func (sharedStore) Close() error { return nil }

type harness struct {
	store *storage.MemoryRecordStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("ASSETSAGA_AUTH_JWT_SECRET", testSecret)
	t.Setenv(TokenEnv, "")
	return &harness{store: storage.NewMemoryRecordStore()}
}

// run executes args on a fresh root command backed by a sqlmock asset database.
func (h *harness) run(t *testing.T, expect func(sqlmock.Sqlmock), args ...string) (string, error) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	if expect != nil {
		expect(mock)
	}

	root := NewAssetSagaCmd(deps.WithAssetDB(db), deps.WithRecordStore(sharedStore{h.store}))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err = root.Execute()

	assert.NoError(t, mock.ExpectationsWereMet())
	return out.String(), err
}

func signToken(t *testing.T, roles ...string) string {
	t.Helper()
	v, err := jwt.NewValidator(&jwt.Config{Secret: testSecret})
	require.NoError(t, err)
	tok, err := v.Sign(jwt.NewClaimsBuilder().
		WithSubject("operator").
		WithIssuer("asset-saga").
		WithRoles(roles...).
		WithExpiresAt(time.Now().Add(time.Hour)).
		Build())
	require.NoError(t, err)
	return tok
}

func expectInsert(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `assets`")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestNewAssetSagaCmd(t *testing.T) {
	root := NewAssetSagaCmd()
	assert.Equal(t, "asset-saga", root.Use)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	for _, name := range []string{"create", "update", "delete", "compensate", "records", "sweep", "migrate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestCreate_RecordsAndCompensate(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "asset-admin")

	out, err := h.run(t, expectInsert, "create", "--token", token,
		"--name", "Printer", "--type", "hardware", "--status", "active", "--warranty-expiry", "2027-06-30")
	require.NoError(t, err)

	var result saga.SagaResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, saga.OutcomeSucceeded, result.Outcome)
	require.NotEmpty(t, result.SagaID)

	out, err = h.run(t, nil, "records", "--saga-id", result.SagaID)
	require.NoError(t, err)
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Completed", views[0]["status"])
	payload, ok := views[0]["statePayload"].(map[string]interface{})
	require.True(t, ok, "state payload is printed as JSON")
	assert.Equal(t, "AssetCreation", payload["sagaType"])

	out, err = h.run(t, func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `assets` WHERE id = ?")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "asset_type", "status"}).
				AddRow("asset-1", "Printer", "hardware", "active"))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `assets` WHERE id = ?")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}, "compensate", result.SagaID)
	require.NoError(t, err)
	assert.Contains(t, out, result.SagaID)

	out, err = h.run(t, nil, "records", "--status", "Compensated")
	require.NoError(t, err)
	assert.Contains(t, out, result.SagaID)
}

func TestCreate_DeniedReturnsError(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, nil, "create", "--token", signToken(t, "asset-auditor"),
		"--name", "Printer", "--type", "hardware", "--status", "active")
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(saga.OutcomeFailedClean))
	assert.Contains(t, out, `"isSuccess": false`)
}

func TestCreate_TokenFromEnvironment(t *testing.T) {
	h := newHarness(t)
	t.Setenv(TokenEnv, signToken(t, "asset-manager"))

	_, err := h.run(t, expectInsert, "create", "--name", "Desk", "--type", "furniture", "--status", "active")
	assert.NoError(t, err)
}

func TestCommands_InputErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing token", []string{"create", "--name", "Printer"}},
		{"bad warranty date", []string{"create", "--token", "t", "--warranty-expiry", "soon"}},
		{"update needs an id", []string{"update"}},
		{"records needs a filter", []string{"records"}},
		{"records rejects unknown status", []string{"records", "--status", "Sleeping"}},
		{"records rejects unknown type", []string{"records", "--type", "AssetTheft"}},
		{"unknown saga", []string{"compensate", "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(t, nil, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestFieldFlags_Mask(t *testing.T) {
	var f fieldFlags
	cmd := &cobra.Command{}
	f.bind(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--status", "retired", "--location", "Warehouse", "--warranty-expiry", ""}))

	assert.Equal(t, []string{saga.FieldLocation, saga.FieldStatus, saga.FieldWarrantyExpiry}, f.mask(cmd.Flags()))

	fields, err := f.fields()
	require.NoError(t, err)
	assert.Equal(t, "retired", fields.Status)
	assert.Nil(t, fields.WarrantyExpiry)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2027-06-30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("2027-06-30T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, 6, 30, 8, 0, 0, 0, time.UTC), d)

	_, err = parseDate("tomorrow")
	assert.Error(t, err)
}

func TestSweep_Once(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, nil, "sweep", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, `"Scanned": 0`)
}

func TestSweep_YAMLOutput(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, nil, "sweep", "--once", "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned: 0")
	assert.NotContains(t, out, "{")
}

func TestOutput_Unsupported(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, nil, "sweep", "--once", "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestSummarize(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	var errOut bytes.Buffer
	c := &cobra.Command{}
	c.SetErr(&errOut)

	summarize(c, &saga.SagaResult{Outcome: saga.OutcomeSucceeded, SagaID: "s-1", Message: "asset created"})
	summarize(c, &saga.SagaResult{Outcome: saga.OutcomeFailedClean, Message: "permission denied"})
	assert.Equal(t, "Succeeded saga=s-1 asset created\nFailedClean saga=- permission denied\n", errOut.String())
}
