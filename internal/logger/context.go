package logger

// Component-specific logger functions. Each call binds the current root
// logger, so call them where you log instead of storing the result.

// DB returns a logger for statement execution and connection handling
func DB() Logger {
	return WithField("component", "db")
}

// Script returns a logger for script resolution
func Script() Logger {
	return WithField("component", "script")
}

// Tx returns a logger for transaction handling
func Tx() Logger {
	return WithField("component", "tx")
}

// CLI returns a logger for CLI operations
func CLI() Logger {
	return WithField("component", "cli")
}

// Config returns a logger for configuration loading
func Config() Logger {
	return WithField("component", "config")
}
