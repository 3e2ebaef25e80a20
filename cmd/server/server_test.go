package main

import (
	"testing"

	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/stretchr/testify/assert"
)

func TestServerOptions_CancelOnClientDisconnect(t *testing.T) {
	opts := hertzconfig.NewOptions(serverOptions("127.0.0.1:0"))

	assert.True(t, opts.SenseClientDisconnection)
	assert.Equal(t, "127.0.0.1:0", opts.Addr)
}
