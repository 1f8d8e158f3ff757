package decision

const NoUrgentAction = "No urgent actions. Continue monitoring."

// SuggestMitigations applies a rule set separate from the status
// heuristics. A zero signal strength means "not provided" and is skipped.
// At least one suggestion is always returned.
func SuggestMitigations(jitter, packetLoss, bandwidth, signal float64) []string {
	var suggestions []string
	if packetLoss > 5.0 {
		suggestions = append(suggestions, "Check cables and limit heavy traffic on the local LAN.")
	}
	if jitter > 20 {
		suggestions = append(suggestions, "Enable QoS and prioritize latency-sensitive traffic.")
	}
	if bandwidth < 5.0 {
		suggestions = append(suggestions, "Reduce background transfers and lower streaming quality.")
	}
	if signal != 0 && signal < 30 {
		suggestions = append(suggestions, "Move device closer to Wi-Fi access point or use wired connection.")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, NoUrgentAction)
	}
	return suggestions
}
