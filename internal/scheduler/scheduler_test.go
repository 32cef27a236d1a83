package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRegisterValidatesSpec(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.Register(Job{Name: "ok", Spec: "30 3 * * *", Run: func() error { return nil }})
	assert.NoError(t, err)

	err = s.Register(Job{Name: "bad", Spec: "not a cron spec", Run: func() error { return nil }})
	assert.Error(t, err)
}
