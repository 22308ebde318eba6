//go:build e2e

package e2e

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillJobForm fills the add/edit modal, empty values are left as is
func fillJobForm(t *testing.T, page playwright.Page, company, position, salary, status, note string) {
	t.Helper()
	fields := []struct{ sel, val string }{
		{"#company", company}, {"#position", position}, {"#salary", salary}, {"#status", status}, {"#note", note},
	}
	for _, f := range fields {
		if f.val == "" {
			continue
		}
		require.NoError(t, page.Locator(f.sel).Fill(f.val))
	}
}

func addJob(t *testing.T, page playwright.Page, company string) {
	t.Helper()
	require.NoError(t, page.Locator("#add-job").Click())
	waitVisible(t, page, "#job-form")
	fillJobForm(t, page, company, "Platform engineer", "7000", "Open", "added by e2e")
	require.NoError(t, page.Locator("#job-form button[type='submit']").Click())
	waitHidden(t, page, "#job-form")
	waitVisible(t, page, fmt.Sprintf(".job-row:has-text(%q)", company))
}

func TestJobs_Add(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	company := fmt.Sprintf("Hooli-%d", time.Now().UnixNano())
	addJob(t, page, company)

	rec, ok := findRecord(company)
	require.True(t, ok, "job stored in backend")
	assert.Equal(t, "Platform engineer", rec.Position)
	assert.Equal(t, "7000", rec.Salary)

	// success toast shown
	waitVisible(t, page, ".toast.success")
}

func TestJobs_AddInvalid(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	before := len(jobsBackend.Records())
	require.NoError(t, page.Locator("#add-job").Click())
	waitVisible(t, page, "#job-form")
	fillJobForm(t, page, "NoPosition Inc", "", "", "Open", "")
	require.NoError(t, page.Locator("#job-form button[type='submit']").Click())

	waitVisible(t, page, ".error-message")
	text, err := page.Locator("#job-form").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "Position is required")
	assert.Contains(t, text, "Salary is required")

	cls, err := page.Locator("#position").GetAttribute("class")
	require.NoError(t, err)
	assert.Contains(t, cls, "field-error")

	val, err := page.Locator("#company").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "NoPosition Inc", val, "entered values kept")
	assert.Len(t, jobsBackend.Records(), before, "nothing sent to backend")

	// escape closes the modal
	require.NoError(t, page.Keyboard().Press("Escape"))
	waitHidden(t, page, "#job-form")
}

func TestJobs_Edit(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)
	company := fmt.Sprintf("Pied Piper-%d", time.Now().UnixNano())
	addJob(t, page, company)

	require.NoError(t, rowWith(page, company).Locator("button.edit").Click())
	waitVisible(t, page, "#job-form")
	val, err := page.Locator("#position").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "Platform engineer", val)

	require.NoError(t, page.Locator("#status").Fill("Close"))
	require.NoError(t, page.Locator("#salary").Fill("9000"))
	require.NoError(t, page.Locator("#job-form button[type='submit']").Click())
	waitHidden(t, page, "#job-form")

	require.Eventually(t, func() bool {
		text, err := rowWith(page, company).Locator(".salary").TextContent()
		return err == nil && strings.TrimSpace(text) == "9000$"
	}, 5*time.Second, 100*time.Millisecond)

	rec, ok := findRecord(company)
	require.True(t, ok)
	assert.Equal(t, "Close", rec.Status)

	// history shows the change
	require.NoError(t, rowWith(page, company).Locator("button.history").Click())
	waitVisible(t, page, ".history-table")
	text, err := page.Locator(".history-table").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "salary: 7000 -> 9000")
	assert.Contains(t, text, "status: Open -> Close")
}

func TestJobs_Delete(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)
	company := fmt.Sprintf("Umbrella-%d", time.Now().UnixNano())
	addJob(t, page, company)

	require.NoError(t, rowWith(page, company).Locator("button.delete").Click())
	waitVisible(t, page, "#confirm-delete")
	text, err := page.Locator(".modal").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, company)

	require.NoError(t, page.Locator("#confirm-delete").Click())
	waitHidden(t, page, "#confirm-delete")
	waitHidden(t, page, fmt.Sprintf(".job-row:has-text(%q)", company))

	_, ok := findRecord(company)
	assert.False(t, ok, "job removed from backend")
}

func TestJobs_CancelKeepsData(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	before := len(jobsBackend.Records())
	require.NoError(t, rowWith(page, "Acme").Locator("button.delete").Click())
	waitVisible(t, page, "#confirm-delete")
	require.NoError(t, page.Locator(".modal-actions button:has-text('Cancel')").Click())
	waitHidden(t, page, "#confirm-delete")
	assert.Len(t, jobsBackend.Records(), before)
}
