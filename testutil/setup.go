package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Credentials baked into the throwaway containers.
const (
	MySQLDatabase = "sms_console"
	MySQLUser     = "sms_user"
	MySQLPassword = "sms_pass"

	RabbitUser     = "rabbit_user"
	RabbitPassword = "rabbit_pass"
)

// MySQL starts a MySQL 8.4 container holding an empty MySQLDatabase owned by
// MySQLUser, and returns it with its mapped host and port. db/db.sql is not
// applied here; SetupAppTest does that.
func MySQL(ctx context.Context, t *testing.T) (tc.Container, string, int) {
	t.Helper()
	return start(ctx, t, tc.ContainerRequest{
		Image:        "mysql:8.4",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      MySQLDatabase,
			"MYSQL_USER":          MySQLUser,
			"MYSQL_PASSWORD":      MySQLPassword,
			"MYSQL_ROOT_PASSWORD": "root_pass",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(90 * time.Second),
	}, "3306/tcp")
}

// Rabbit starts a RabbitMQ 3.13 broker with a RabbitUser account and no
// exchanges; callers declare the history exchange through pkg/queue.
func Rabbit(ctx context.Context, t *testing.T) (tc.Container, string, int) {
	t.Helper()
	return start(ctx, t, tc.ContainerRequest{
		Image:        "rabbitmq:3.13-management",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": RabbitUser,
			"RABBITMQ_DEFAULT_PASS": RabbitPassword,
		},
		WaitingFor: wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
	}, "5672/tcp")
}

// RabbitURI is the AMQP URI for a broker started by Rabbit.
func RabbitURI(host string, port int) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", RabbitUser, RabbitPassword, host, port)
}

// start runs req and resolves the host mapping of port. Any failure to reach
// Docker skips the test instead of failing it.
func start(ctx context.Context, t *testing.T, req tc.ContainerRequest, port nat.Port) (tc.Container, string, int) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("skipping: docker/testcontainers not available (%v)", r)
		}
	}()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("skipping: docker/testcontainers not available (%v)", err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("%s port %s: %v", req.Image, port, err)
	}
	return c, host, mapped.Int()
}
