package analytics

import (
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewConsumerID names this process inside the consumer group as
// host-pid-suffix, where the random suffix differs on every start.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	id := ulid.Make().String()
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), strings.ToLower(id[len(id)-6:]))
}
