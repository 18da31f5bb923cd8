package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testDB returns a fresh store path and a missing env file so the
// developer's environment does not leak into commands.
func testDB(t *testing.T) (db, envFile string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "till.db"), filepath.Join(dir, "missing.env")
}

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), code
}

// tillsync runs a command against db with JSON output and decodes the
// response.
func tillsync(t *testing.T, db, envFile, stdin string, args ...string) (CLIResponse, int) {
	t.Helper()
	full := append([]string{"--db", db, "--env-file", envFile, "--format", "json"}, args...)
	stdout, stderr, code := execute(t, stdin, full...)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s\nstderr: %s", stdout, stderr)
	return resp, code
}

// data decodes a response payload into out.
func data(t *testing.T, resp CLIResponse, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const cashierJSON = `{
  "id": "cashier1",
  "email": "cashier@example.com",
  "displayName": "Till One",
  "permissions": [
    {"companyId": "C1", "roleId": "cashier", "storeId": "S1"},
    {"companyId": "C1", "roleId": "cashier", "storeId": "S2"}
  ]
}`
