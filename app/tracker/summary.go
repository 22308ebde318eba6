package tracker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/web/enums"
)

// Stats holds counts of jobs by status
type Stats struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// Summarize counts jobs by status. Anything not closed counts as open,
// status is a free text in relaxed mode.
func Summarize(jobs []backend.Job) Stats {
	res := Stats{Total: len(jobs)}
	for _, j := range jobs {
		if IsClosed(j) {
			res.Closed++
			continue
		}
		res.Open++
	}
	return res
}

// IsClosed reports if job application is closed, i.e. status is "Close" or "Closed" in any case
func IsClosed(job backend.Job) bool {
	st := strings.TrimSpace(job.Status)
	return strings.EqualFold(st, enums.JobStatusClose.String()) || strings.EqualFold(st, "closed")
}

// Filter returns jobs matching filter mode and search term. Search is case-insensitive
// and checks company, position and note.
func Filter(jobs []backend.Job, mode enums.FilterMode, search string) []backend.Job {
	search = strings.ToLower(strings.TrimSpace(search))
	res := make([]backend.Job, 0, len(jobs))
	for _, j := range jobs {
		switch mode {
		case enums.FilterModeOpen:
			if IsClosed(j) {
				continue
			}
		case enums.FilterModeClosed:
			if !IsClosed(j) {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(j.Company), search) &&
			!strings.Contains(strings.ToLower(j.Position), search) &&
			!strings.Contains(strings.ToLower(j.Note), search) {
			continue
		}
		res = append(res, j)
	}
	return res
}

// Sort orders jobs in place. Default mode keeps backend order.
func Sort(jobs []backend.Job, mode enums.SortMode) {
	switch mode {
	case enums.SortModeCompany:
		sort.SliceStable(jobs, func(i, j int) bool {
			ci, cj := strings.ToLower(jobs[i].Company), strings.ToLower(jobs[j].Company)
			if ci == cj {
				return strings.ToLower(jobs[i].Position) < strings.ToLower(jobs[j].Position)
			}
			return ci < cj
		})
	case enums.SortModeStatus:
		// open first, then by status text
		sort.SliceStable(jobs, func(i, j int) bool {
			ci, cj := IsClosed(jobs[i]), IsClosed(jobs[j])
			if ci != cj {
				return !ci
			}
			return strings.ToLower(jobs[i].Status) < strings.ToLower(jobs[j].Status)
		})
	}
}

// Changes returns human readable list of changed fields for update event, i.e. "status: Open -> Close".
// Empty for other event types.
func (e Event) Changes() []string {
	if e.Type != enums.EventTypeUpdated || e.Prev.ID == "" {
		return nil
	}
	var res []string
	diff := func(name, prev, cur string) {
		if prev != cur {
			res = append(res, fmt.Sprintf("%s: %s -> %s", name, prev, cur))
		}
	}
	diff(FieldCompany, e.Prev.Company, e.Job.Company)
	diff(FieldPosition, e.Prev.Position, e.Job.Position)
	diff(FieldSalary, e.Prev.Salary, e.Job.Salary)
	diff(FieldStatus, e.Prev.Status, e.Job.Status)
	diff(FieldNote, e.Prev.Note, e.Job.Note)
	return res
}
