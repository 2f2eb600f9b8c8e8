package ports

// Server is a network listener owned by the service process
type Server interface {
	// Start begins serving in the background
	Start() error

	// Stop shuts the listener down
	Stop() error
}
