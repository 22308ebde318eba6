package tracker

import (
	"github.com/invopop/jsonschema"

	"github.com/umputun/jobtrack/app/backend"
)

// GenerateSchema returns JSON schema of the job record as exchanged with the backend
func GenerateSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&backend.Job{})
	schema.Title = "Job"
	schema.Description = "Tracked job application record"
	return schema
}
