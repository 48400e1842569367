package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-orders/internal/app"
	_ "github.com/odyssey-erp/odyssey-orders/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
