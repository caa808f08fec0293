package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "macropulse",
		User:        "default",
		DialTimeout: 5 * time.Second,
		MaxExecTime: 60 * time.Second,
		AsyncInsert: true,
	}
	assert.Equal(t,
		"clickhouse://default:@ch:9000/macropulse?dial_timeout=5s&max_execution_time=60&async_insert=1",
		BuildDSN(cfg))

	cfg.UseHTTP = true
	cfg.WaitForAsync = true
	cfg.DialTimeout = 0
	assert.Equal(t,
		"http://default:@ch:9000/macropulse?max_execution_time=60&async_insert=1&wait_for_async_insert=1",
		BuildDSN(cfg))
}
