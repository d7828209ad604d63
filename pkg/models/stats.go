package models

import "time"

// ScanStats records what a scan touched
type ScanStats struct {
	NodesVisited  int64         `json:"nodesVisited"`
	VisitErrors   int64         `json:"visitErrors"`
	Truncated     int64         `json:"truncated"`
	Assets        int64         `json:"assets"`
	Probes        int64         `json:"probes"`
	ProbeFailures int64         `json:"probeFailures"`
	Duration      time.Duration `json:"duration"`
}
