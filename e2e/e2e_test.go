//go:build e2e

// Package e2e provides end-to-end browser tests for the jobtrack web UI.
// The jobs backend is an in-process fake, the app binary is built and started against it.
//
// Test organization:
// - e2e_test.go: TestMain, shared helpers, core dashboard tests
// - crud_test.go: add, edit and delete jobs through modals
// - controls_test.go: search, sort, filter, theme and bulk delete
// - auth_test.go: login/logout on a separate auth-enabled server
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtrack/app/backend/fake"
)

const (
	baseURL    = "http://localhost:18090"
	testDBPath = "/tmp/jobtrack-e2e.db"
	binPath    = "/tmp/jobtrack-e2e"
)

var (
	pw          *playwright.Playwright
	serverCmd   *exec.Cmd
	jobsBackend *fake.Backend
	backendURL  string
)

func TestMain(m *testing.M) {
	_ = os.Remove(testDBPath)

	jobsBackend = fake.New(
		fake.Record{Company: "Acme", Position: "Go developer", Salary: "5000", Status: "Open", Note: "referral"},
		fake.Record{Company: "Globex", Position: "SRE", Salary: "6000", Status: "Close", Note: "rejected after onsite"},
		fake.Record{Company: "Initech", Position: "Backend engineer", Salary: "4000-4500", Status: "Open", Note: "take-home"},
	)
	backendSrv := httptest.NewServer(jobsBackend)
	backendURL = backendSrv.URL

	ctx := context.Background()
	build := exec.CommandContext(ctx, "go", "build", "-o", binPath, "./app")
	build.Dir = ".."
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Printf("failed to build: %v\n", err)
		os.Exit(1)
	}

	// main server runs without auth, auth tests use a separate server
	serverCmd = startServer(ctx, "18090", testDBPath)
	if err := waitForServer(baseURL+"/ping", 30*time.Second); err != nil {
		fmt.Printf("server not ready: %v\n", err)
		_ = serverCmd.Process.Kill()
		os.Exit(1)
	}

	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		fmt.Printf("failed to install playwright: %v\n", err)
		_ = serverCmd.Process.Kill()
		os.Exit(1)
	}

	var err error
	pw, err = playwright.Run()
	if err != nil {
		fmt.Printf("failed to start playwright: %v\n", err)
		_ = serverCmd.Process.Kill()
		os.Exit(1)
	}

	code := m.Run()

	_ = pw.Stop()
	_ = serverCmd.Process.Kill()
	backendSrv.Close()
	_ = os.Remove(testDBPath)
	os.Exit(code)
}

// startServer runs the app binary against the fake backend, extra args appended
func startServer(ctx context.Context, port, dbPath string, args ...string) *exec.Cmd {
	cmdArgs := append([]string{
		"--backend.url=" + backendURL,
		"--backend.timeout=2s",
		"--web.address=:" + port,
		"--web.db=" + dbPath,
		"--web.hostname=e2e-test",
	}, args...)
	cmd := exec.CommandContext(ctx, binPath, cmdArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		fmt.Printf("failed to start server: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

func waitForServer(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("server not ready after %v", timeout)
		default:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody) // #nosec G107 - test url
			if err != nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			resp, err := client.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func newPage(t *testing.T) playwright.Page {
	t.Helper()
	headless := os.Getenv("E2E_HEADLESS") != "false"
	slowMo := 0.0
	if !headless {
		slowMo = 50 // 50ms slowdown for UI mode
	}
	brow, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		SlowMo:   playwright.Float(slowMo),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = brow.Close() })

	// isolated context, cookies are not shared between tests
	ctx, err := brow.NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })

	page, err := ctx.NewPage()
	require.NoError(t, err)
	return page
}

// navigateToDashboard opens the dashboard and waits for the jobs table
func navigateToDashboard(t *testing.T, page playwright.Page) {
	t.Helper()
	_, err := page.Goto(baseURL)
	require.NoError(t, err)
	waitVisible(t, page, ".header")
	waitVisible(t, page, "#jobs-container")
}

func waitVisible(t *testing.T, page playwright.Page, selector string) {
	t.Helper()
	err := page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	})
	require.NoError(t, err, "%s should be visible", selector)
}

func waitHidden(t *testing.T, page playwright.Page, selector string) {
	t.Helper()
	err := page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(5000),
	})
	require.NoError(t, err, "%s should be hidden", selector)
}

// rowWith returns locator of the jobs table row containing text
func rowWith(page playwright.Page, text string) playwright.Locator {
	return page.Locator(".job-row", playwright.PageLocatorOptions{HasText: text})
}

// findRecord looks up fake backend record by company
func findRecord(company string) (fake.Record, bool) {
	for _, r := range jobsBackend.Records() {
		if strings.EqualFold(r.Company, company) {
			return r, true
		}
	}
	return fake.Record{}, false
}

// --- dashboard tests ---

func TestDashboard_PageLoads(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	title, err := page.Title()
	require.NoError(t, err)
	assert.Equal(t, "Job Tracker - e2e-test", title)

	text, err := page.Locator(".hostname").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "e2e-test")
}

func TestDashboard_ShowsJobs(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)
	waitVisible(t, page, ".job-row")

	for _, company := range []string{"Acme", "Initech"} {
		visible, err := rowWith(page, company).IsVisible()
		require.NoError(t, err)
		assert.True(t, visible, "row of %s should be visible", company)
	}
	text, err := rowWith(page, "Acme").Locator(".salary").TextContent()
	require.NoError(t, err)
	assert.Equal(t, "5000$", strings.TrimSpace(text))
}

func TestDashboard_ShowsStats(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)
	waitVisible(t, page, "#stats")

	for _, id := range []string{"#stat-total", "#stat-open", "#stat-closed"} {
		text, err := page.Locator(id).TextContent()
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(text), id)
	}
}
