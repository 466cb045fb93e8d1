package watch

// LiveSubscriptions reports how many folder watchers are open.
func (s *Service) LiveSubscriptions() int64 {
	return s.live.Load()
}
