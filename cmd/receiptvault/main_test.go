package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptvault/internal/backendtest"
	"receiptvault/internal/models"
)

// testEnv points the CLI at a fresh fixture backend and an isolated
// session database via the environment, the same way a deployment would.
func testEnv(t *testing.T) *backendtest.Server {
	t.Helper()
	backend := backendtest.New()
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)

	t.Setenv("RECEIPTVAULT_API_URL", server.URL)
	t.Setenv("RECEIPTVAULT_STATE_PATH", filepath.Join(t.TempDir(), "session.db"))
	return backend
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	err := run(args, bytes.NewBufferString(stdin), stdout, stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_MissingCommand(t *testing.T) {
	_, stderr, err := runCLI(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing command")
	assert.Contains(t, stderr, "Usage:")
}

func TestRun_UnknownCommand(t *testing.T) {
	_, _, err := runCLI(t, "", "fly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRun_LoginLogoutFlow(t *testing.T) {
	backend := testEnv(t)
	backend.AddUser("a@b.com", "hunter2hunter2", "Alex")

	stdout, _, err := runCLI(t, "", "login", "-email", "a@b.com", "-password", "hunter2hunter2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed in as a@b.com")

	stdout, _, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, stdout, "a@b.com")
	assert.Contains(t, stdout, "@receipts.receiptvault.app")

	stdout, _, err = runCLI(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed out.")

	_, stderr, err := runCLI(t, "", "whoami")
	require.Error(t, err)
	assert.Contains(t, stderr, "not signed in")
}

func TestRun_LoginInteractivePassword(t *testing.T) {
	backend := testEnv(t)
	backend.AddUser("a@b.com", "typed-secret", "")

	// Simulate the user typing the password followed by newline.
	stdout, _, err := runCLI(t, "typed-secret\n", "login", "-email", "a@b.com")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Password: ")
	assert.Contains(t, stdout, "Signed in as a@b.com")
}

func TestRun_ProtectedCommandWithoutSessionMakesNoRequest(t *testing.T) {
	backend := testEnv(t)

	_, _, err := runCLI(t, "", "receipts")
	require.Error(t, err)
	assert.Zero(t, backend.Requests(), "no stored credential must mean no network call")
}

func TestRun_RejectedCredentialIsCleared(t *testing.T) {
	backend := testEnv(t)
	user := backend.AddUser("a@b.com", "hunter2hunter2", "")

	require.NoError(t, runSeedToken(t, backend.ExpiredTokenFor(user.ID)))

	_, stderr, err := runCLI(t, "", "whoami")
	require.Error(t, err)
	assert.Contains(t, stderr, "not signed in")

	// The stale credential is gone: the next activation short-circuits
	// before the network.
	served := backend.Requests()
	_, _, err = runCLI(t, "", "whoami")
	require.Error(t, err)
	assert.Equal(t, served, backend.Requests())
}

func TestRun_ReceiptCommands(t *testing.T) {
	backend := testEnv(t)
	user := backend.AddUser("a@b.com", "hunter2hunter2", "")
	backend.AddReceipt(user.ID, models.Receipt{
		ImageURL:    "https://storage.receiptvault.test/seed.jpg",
		Vendor:      "Starbucks",
		TotalAmount: 9.23,
		Status:      models.StatusPending,
	})

	_, _, err := runCLI(t, "", "login", "-email", "a@b.com", "-password", "hunter2hunter2")
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "", "receipts")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Starbucks")

	stdout, _, err = runCLI(t, "", "approve", "-id", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "approved")

	stdout, _, err = runCLI(t, "", "update", "-id", "1", "-notes", "Team coffee")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Team coffee")

	stdout, _, err = runCLI(t, "", "delete", "-id", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "deleted")

	stdout, _, err = runCLI(t, "", "deleted")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Starbucks")

	stdout, _, err = runCLI(t, "", "restore", "-id", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "restored")
}

func TestRun_PlansLookup(t *testing.T) {
	stdout, _, err := runCLI(t, "", "plans")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Free")
	assert.Contains(t, stdout, "Professional")
	assert.Contains(t, stdout, "Pro Plus")

	stdout, _, err = runCLI(t, "", "plans", "-id", "pro_plus")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Pro Plus")
	assert.NotContains(t, stdout, "Professional -")

	stdout, _, err = runCLI(t, "", "plans", "-price", "999")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Professional")

	_, _, err = runCLI(t, "", "plans", "-id", "enterprise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRun_CheckoutCompleteWithoutSessionID(t *testing.T) {
	backend := testEnv(t)

	stdout, _, err := runCLI(t, "", "checkout-complete", "-url", "https://app/checkout/success")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Payment complete")
	assert.Zero(t, backend.SyncCalls(), "no session_id must mean no sync call")
}

func TestRun_CheckoutCompleteSyncFailureIsNonBlocking(t *testing.T) {
	backend := testEnv(t)
	backend.AddUser("a@b.com", "hunter2hunter2", "")

	_, _, err := runCLI(t, "", "login", "-email", "a@b.com", "-password", "hunter2hunter2")
	require.NoError(t, err)

	backend.FailSync(502, "stripe unreachable")
	stdout, _, err := runCLI(t, "",
		"checkout-complete", "-url", "https://app/checkout/success?session_id=cs_1")
	require.NoError(t, err, "sync failure must not block the command")
	assert.Contains(t, stdout, "confirming your plan failed")
	assert.Equal(t, 1, backend.SyncCalls())
}

// runSeedToken plants a token in the CLI's session store the way a prior
// login would have.
func runSeedToken(t *testing.T, token string) error {
	t.Helper()
	env, err := newAppEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	return env.store.SetToken(token)
}
