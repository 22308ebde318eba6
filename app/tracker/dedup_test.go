package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInFlight(t *testing.T) {
	f := newInFlight()
	assert.True(t, f.acquire(jobKey("1")), "first mutation of job")
	assert.False(t, f.acquire(jobKey("1")), "job is busy")
	assert.True(t, f.acquire(jobKey("2")), "other job")
	f.release(jobKey("1"))
	assert.True(t, f.acquire(jobKey("1")), "released")
	f.release(jobKey("1"))
	f.release(jobKey("1"))

	form := Form{Company: "Acme", Position: "Go dev"}
	assert.True(t, f.acquire(createKey(form)))
	assert.False(t, f.acquire(createKey(form)), "same form submitted twice")
	assert.True(t, f.acquire(createKey(Form{Company: "Acme", Position: "SRE"})), "other position")
}

func TestInFlightKeys(t *testing.T) {
	assert.NotEqual(t, jobKey("1"), createKey(Form{Company: "1"}))
}
