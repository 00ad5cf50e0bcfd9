package report

import (
	"bufio"
	"fmt"
	"io"

	"gridmdp/reinforcement"
)

// WriteResultsLog writes one line per episode, numbered from one:
//
//	Episode 1: Policy: [N,S,E,W], Reward: -0.3
func WriteResultsLog(w io.Writer, episodes []reinforcement.EpisodeResult) error {
	bw := bufio.NewWriter(w)
	for _, ep := range episodes {
		if _, err := fmt.Fprintf(bw, "Episode %d: Policy: [%s], Reward: %v\n",
			ep.Episode+1, ep.Policy.String(), ep.Reward); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}
	return bw.Flush()
}

// WriteEpisodeSummary is the one-line console progress report of an episode.
func WriteEpisodeSummary(w io.Writer, ep *reinforcement.EpisodeResult) {
	fmt.Fprintf(w, "Episode %d: Steps: %d, Total Reward: %.2f, Epsilon: %.4f\n",
		ep.Episode+1, ep.Steps, ep.Reward, ep.Epsilon)
}
