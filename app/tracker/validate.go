package tracker

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/web/enums"
)

// form field names, used as keys of FieldErrors and as html input names
const (
	FieldCompany  = "company"
	FieldPosition = "position"
	FieldSalary   = "salary"
	FieldStatus   = "status"
	FieldNote     = "note"
)

// strict mode limits
const (
	minTextLen = 2
	maxTextLen = 100
	maxNoteLen = 500
)

var reSalary = regexp.MustCompile(`^(\d+)(?:\s*-\s*(\d+))?$`)

// Form is a job form as submitted by user
type Form struct {
	Company  string
	Position string
	Salary   string
	Status   string
	Note     string
}

// FieldErrors maps form field name to the problem with it. Empty map means valid form.
type FieldErrors map[string]string

// ValidationError returned by service when submitted form is invalid
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, k+" "+e.Fields[k])
	}
	return "invalid job: " + strings.Join(msgs, ", ")
}

// FormFromJob makes form prefilled with job fields, used by the edit dialog
func FormFromJob(job backend.Job) Form {
	return Form{Company: job.Company, Position: job.Position, Salary: job.Salary, Status: job.Status, Note: job.Note}
}

// Normalize trims all fields. In strict mode status converted to its canonical form (Open/Close)
// and salary range spaces removed.
func (f Form) Normalize(mode enums.ValidationMode) Form {
	res := Form{
		Company:  strings.TrimSpace(f.Company),
		Position: strings.TrimSpace(f.Position),
		Salary:   strings.TrimSpace(f.Salary),
		Status:   strings.TrimSpace(f.Status),
		Note:     strings.TrimSpace(f.Note),
	}
	if mode != enums.ValidationModeStrict {
		return res
	}
	for _, st := range enums.JobStatusValues {
		if strings.EqualFold(res.Status, st.String()) {
			res.Status = st.String()
		}
	}
	if m := reSalary.FindStringSubmatch(res.Salary); m != nil && m[2] != "" {
		res.Salary = m[1] + "-" + m[2]
	}
	return res
}

// Validate checks the form. Every field is required in both modes, strict mode adds
// format and length checks. All problems reported, not only the first one.
func (f Form) Validate(mode enums.ValidationMode) FieldErrors {
	errs := FieldErrors{}
	fields := []struct{ name, value string }{
		{FieldCompany, f.Company}, {FieldPosition, f.Position}, {FieldSalary, f.Salary},
		{FieldStatus, f.Status}, {FieldNote, f.Note},
	}
	for _, fld := range fields {
		if strings.TrimSpace(fld.value) == "" {
			errs[fld.name] = "is required"
		}
	}
	if mode != enums.ValidationModeStrict {
		return errs
	}

	checkLen := func(name, value string, minLen, maxLen int) {
		if _, found := errs[name]; found {
			return
		}
		if l := utf8.RuneCountInString(strings.TrimSpace(value)); l < minLen || l > maxLen {
			errs[name] = fmt.Sprintf("must be between %d and %d characters", minLen, maxLen)
		}
	}
	checkLen(FieldCompany, f.Company, minTextLen, maxTextLen)
	checkLen(FieldPosition, f.Position, minTextLen, maxTextLen)
	checkLen(FieldNote, f.Note, 1, maxNoteLen)

	if _, found := errs[FieldSalary]; !found {
		if err := checkSalary(strings.TrimSpace(f.Salary)); err != "" {
			errs[FieldSalary] = err
		}
	}

	if _, found := errs[FieldStatus]; !found {
		if _, err := parseStatus(f.Status); err != nil {
			errs[FieldStatus] = fmt.Sprintf("must be one of %s", strings.Join(enums.JobStatusNames, ", "))
		}
	}
	return errs
}

// Job makes backend job from the form, values trimmed
func (f Form) Job() backend.Job {
	n := f.Normalize(enums.ValidationModeRelaxed)
	return backend.Job{Company: n.Company, Position: n.Position, Salary: n.Salary, Status: n.Status, Note: n.Note}
}

// SalaryRange parses salary as a number or a min-max range. Returns ok=false for free text salary.
func SalaryRange(salary string) (minSalary, maxSalary int, ok bool) {
	m := reSalary.FindStringSubmatch(strings.TrimSpace(salary))
	if m == nil {
		return 0, 0, false
	}
	minSalary, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	if m[2] == "" {
		return minSalary, minSalary, true
	}
	maxSalary, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return minSalary, maxSalary, true
}

func checkSalary(salary string) string {
	if !reSalary.MatchString(salary) {
		return "must be a number or a range like 1000-2000"
	}
	minSalary, maxSalary, ok := SalaryRange(salary)
	if !ok {
		return "is too large"
	}
	if minSalary > maxSalary {
		return "min salary exceeds max"
	}
	return ""
}

func parseStatus(s string) (enums.JobStatus, error) {
	for _, st := range enums.JobStatusValues {
		if strings.EqualFold(strings.TrimSpace(s), st.String()) {
			return st, nil
		}
	}
	return enums.JobStatus{}, fmt.Errorf("invalid status %q", s)
}
