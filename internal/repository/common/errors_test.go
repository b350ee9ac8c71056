package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: pq.ErrorCode(pgerrcode.UniqueViolation), Constraint: "uq_order_applications_approved"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "uq_order_applications_approved"))
	assert.False(t, IsUniqueViolation(err, "payments_provider_order_id_key"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: pq.ErrorCode(pgerrcode.CheckViolation)}, ""))
}

func TestIsCheckViolation(t *testing.T) {
	assert.True(t, IsCheckViolation(&pq.Error{Code: pq.ErrorCode(pgerrcode.CheckViolation)}))
	assert.False(t, IsCheckViolation(&pq.Error{Code: pq.ErrorCode(pgerrcode.UniqueViolation)}))
}
