package e2e

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoginWhoami(t *testing.T) {
	app := newApp(t)

	out, err := app.run("register",
		"-email", "new@example.com", "-name", "New User", "-password", "hunter2hunter2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Account created for new@example.com")
	assert.Contains(t, out, "Forward receipts to:")

	out, err = app.run("login", "-email", "new@example.com", "-password", "hunter2hunter2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Signed in as new@example.com")

	out, err = app.run("whoami")
	require.NoError(t, err, out)
	assert.Contains(t, out, "new@example.com")
	assert.Contains(t, out, "New User")
	assert.Contains(t, out, "Free")
}

func TestLoginWrongPassword(t *testing.T) {
	app := newApp(t)
	app.backend.AddUser("a@b.com", "hunter2hunter2", "")

	out, err := app.run("login", "-email", "a@b.com", "-password", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, out, "Incorrect email or password")
}

func TestUploadAndListJourney(t *testing.T) {
	app := newApp(t)
	app.backend.AddUser("a@b.com", "hunter2hunter2", "")

	out, err := app.run("login", "-email", "a@b.com", "-password", "hunter2hunter2")
	require.NoError(t, err, out)

	image := filepath.Join(t.TempDir(), "lunch.jpg")
	require.NoError(t, os.WriteFile(image, []byte("jpeg-bytes-go-here"), 0o644))

	out, err = app.run("upload", "-file", image)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Uploading... 100%")
	assert.Contains(t, out, "Receipt 1 created")

	out, err = app.run("receipts")
	require.NoError(t, err, out)
	assert.Contains(t, out, "completed")

	out, err = app.run("update", "-id", "1", "-vendor", "Pret", "-amount", "12.40")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Pret")
	assert.Contains(t, out, "12.40")

	out, err = app.run("delete", "-id", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "deleted")

	out, err = app.run("receipts")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No receipts yet")

	out, err = app.run("restore", "-id", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "restored")
}

func TestSessionPersistsAcrossProcesses(t *testing.T) {
	app := newApp(t)
	app.backend.AddUser("a@b.com", "hunter2hunter2", "")

	out, err := app.run("login", "-email", "a@b.com", "-password", "hunter2hunter2")
	require.NoError(t, err, out)

	// Each run is a fresh process; only the session database carries the
	// credential between them.
	for range 3 {
		out, err = app.run("whoami")
		require.NoError(t, err, out)
		assert.Contains(t, out, "a@b.com")
	}

	out, err = app.run("logout")
	require.NoError(t, err, out)

	out, err = app.run("whoami")
	require.Error(t, err)
	assert.Contains(t, out, "not signed in")
}

func TestCheckoutCompleteJourney(t *testing.T) {
	app := newApp(t)
	user := app.backend.AddUser("a@b.com", "hunter2hunter2", "")

	out, err := app.run("login", "-email", "a@b.com", "-password", "hunter2hunter2")
	require.NoError(t, err, out)

	out, err = app.run("upgrade", "-plan", "professional")
	require.NoError(t, err, out)
	assert.Contains(t, out, "checkout.receiptvault.test")

	app.backend.SetPlan(user.ID, "professional")
	out, err = app.run("checkout-complete", "-url",
		"https://app.receiptvault.test/checkout/success?session_id=cs_test_1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Subscription confirmed")
	assert.Contains(t, out, "Professional")
	assert.Equal(t, 1, app.backend.SyncCalls())

	out, err = app.run("status")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Professional")
}

func TestAnalyticsOutput(t *testing.T) {
	app := newApp(t)
	app.backend.AddUser("a@b.com", "hunter2hunter2", "")

	out, err := app.run("login", "-email", "a@b.com", "-password", "hunter2hunter2")
	require.NoError(t, err, out)

	image := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(image, []byte("png-bytes"), 0o644))
	out, err = app.run("upload", "-file", image)
	require.NoError(t, err, out)

	out, err = app.run("update", "-id", "1",
		"-vendor", "Trainline", "-amount", "54.30", "-category", "Travel", "-date", "2026-08-12")
	require.NoError(t, err, out)

	out, err = app.run("analytics", "-start", "2026-08-01", "-end", "2026-08-31")
	require.NoError(t, err, out)
	assert.Contains(t, out, "£54.30")
	assert.Contains(t, out, "Travel")
	assert.Contains(t, out, "2026-08")
}
