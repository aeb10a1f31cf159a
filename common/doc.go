// Package common provides shared constants, types, utilities, and interfaces
// used throughout the supervisor.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Application-wide constants like timeouts, file names, and resolver lists
//   - Errors: Sentinel errors for consistent error handling across packages
//   - Interfaces: Abstractions for desktop notifications and logging
//   - Logger: Structured logging with multiple output destinations
//   - Utils: Common utility functions for file operations
//
// # Usage
//
// Import the package to access shared functionality:
//
//	import "github.com/yllada/openvpn-supervisor/common"
//
//	// Use constants
//	timeout := common.ConnectTimeout
//
//	// Use logger
//	common.LogInfo("Starting connection to %s", location)
//
//	// Check errors
//	if errors.Is(err, common.ErrNoTunnelConfigs) {
//	    // Handle missing .ovpn files
//	}
//
// # Design Principles
//
// This package follows several design principles:
//
//   - Single Responsibility: Each file handles one concern
//   - Interface Segregation: Small, focused interfaces
//   - Open/Closed: Extensible through interfaces, not modification
//   - Dependency Inversion: High-level modules depend on abstractions
package common
