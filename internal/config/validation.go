package config

import (
	"fmt"
	"net"
	"strconv"
)

// ValidateGRPCEndpoint validates a host:port gRPC endpoint such as the OTLP collector
func ValidateGRPCEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("gRPC endpoint cannot be empty")
	}

	// Check if it contains a port
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return fmt.Errorf("gRPC endpoint must include port: %w", err)
	}

	// Validate host
	if host == "" {
		return fmt.Errorf("gRPC endpoint must include host")
	}

	// Validate port range
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port number must be between 1 and 65535")
	}

	return nil
}

// ValidateRedisNode validates a Valkey/Redis node address
func ValidateRedisNode(node string) error {
	if node == "" {
		return fmt.Errorf("Redis node cannot be empty")
	}

	// Check format: host:port
	host, port, err := net.SplitHostPort(node)
	if err != nil {
		return fmt.Errorf("Redis node must be in format host:port: %w", err)
	}

	if host == "" {
		return fmt.Errorf("Redis node must include host")
	}

	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid Redis port: %w", err)
	}

	return nil
}
