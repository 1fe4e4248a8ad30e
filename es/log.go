package es

import "fmt"

func (s *Server) Debugf(format string, args ...interface{}) {
	if w := s.DebugWriter; w != nil {
		fmt.Fprintf(w, format+"\n", args...)
	}
}
