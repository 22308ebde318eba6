// Package enums provides type-safe enumeration types for the web interface and the activity journal.
//
// The enum types are defined as unexported integer types (e.g., theme int) in this file,
// and the go:generate directives invoke the go-pkgz/enum generator to create corresponding exported
// types with String, Parse*, MarshalText/UnmarshalText and Scan/Value methods in *_enum.go files.
//
// Usage:
//
//	mode := enums.SortModeCompany
//	fmt.Println(mode.String()) // "company"
//
//	parsed, err := enums.ParseFilterMode("open")
//	if err != nil {
//	    // handle invalid input
//	}
//
// To regenerate the enum types after modifications:
//
//	go generate ./app/web/enums
//
// Note: the unexported type definitions below are only used by the generator.
// All actual code should use the generated exported types.
package enums

//go:generate go run github.com/go-pkgz/enum@latest -type eventType -lower
//go:generate go run github.com/go-pkgz/enum@latest -type theme -lower
//go:generate go run github.com/go-pkgz/enum@latest -type sortMode -lower
//go:generate go run github.com/go-pkgz/enum@latest -type filterMode -lower
//go:generate go run github.com/go-pkgz/enum@latest -type validationMode -lower
//go:generate go run github.com/go-pkgz/enum@latest -type jobStatus

// eventType represents activity journal event types.
type eventType int

const (
	eventTypeCreated eventType = iota
	eventTypeUpdated
	eventTypeDeleted
)

// theme represents UI themes.
type theme int

const (
	themeLight theme = iota
	themeDark
	themeAuto
)

// sortMode represents table sorting modes.
type sortMode int

const (
	sortModeDefault sortMode = iota
	sortModeCompany
	sortModeStatus
)

// filterMode represents table filtering by application status.
type filterMode int

const (
	filterModeAll filterMode = iota
	filterModeOpen
	filterModeClosed
)

// validationMode selects how strictly submitted job forms are checked.
type validationMode int

const (
	validationModeRelaxed validationMode = iota
	validationModeStrict
)

// jobStatus is the two-valued status used in strict validation mode.
// Names are kept capitalized, this is what the backend stores.
type jobStatus int

const (
	jobStatusOpen jobStatus = iota
	jobStatusClose
)
