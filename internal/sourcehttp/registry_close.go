package sourcehttp

// Close closes every cache database the registry has opened. Intended
// for use at process shutdown or in tests; not required for normal CLI
// runs, which simply exit.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, c := range r.byName {
		if err := c.api.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.thumb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
