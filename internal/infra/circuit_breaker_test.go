package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemoto = errors.New("remoto caido")

func cbDePrueba() *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      50 * time.Millisecond,
	})
}

func TestCircuitBreakerAbreTrasFallosConsecutivos(t *testing.T) {
	cb := cbDePrueba()

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errRemoto })
		assert.ErrorIs(t, err, errRemoto)
	}
	assert.Equal(t, CBOpen, cb.State())

	// Abierto: fast-fail sin ejecutar fn
	ejecutado := false
	err := cb.Execute(func() error { ejecutado = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ejecutado)
}

func TestCircuitBreakerExitoResetea(t *testing.T) {
	cb := cbDePrueba()

	require.Error(t, cb.Execute(func() error { return errRemoto }))
	require.Error(t, cb.Execute(func() error { return errRemoto }))
	require.NoError(t, cb.Execute(func() error { return nil }))

	// El contador volvió a cero: dos fallos más no abren el circuito
	require.Error(t, cb.Execute(func() error { return errRemoto }))
	require.Error(t, cb.Execute(func() error { return errRemoto }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreakerHalfOpenYRecuperacion(t *testing.T) {
	cb := cbDePrueba()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errRemoto })
	}
	require.Equal(t, CBOpen, cb.State())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, CBHalfOpen, cb.State())

	// Dos sondas exitosas cierran el circuito
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreakerSondaFallidaReabre(t *testing.T) {
	cb := cbDePrueba()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errRemoto })
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, CBHalfOpen, cb.State())

	require.Error(t, cb.Execute(func() error { return errRemoto }))
	assert.Equal(t, CBOpen, cb.State())
}

func TestCBStateString(t *testing.T) {
	assert.Equal(t, "closed", CBClosed.String())
	assert.Equal(t, "open", CBOpen.String())
	assert.Equal(t, "half-open", CBHalfOpen.String())
}
