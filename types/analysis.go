package types

import (
	"fmt"
	"path"
	"strconv"

	"github.com/zeu5/royale-rl/util"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// RewardStats is the DataSet of the RewardAnalyzer.
type RewardStats struct {
	Returns []float64
	Lengths []float64
	Results map[BattleResult]int
}

func (r *RewardStats) MeanReturn() (mean, std float64) {
	if len(r.Returns) == 0 {
		return 0, 0
	}
	if len(r.Returns) == 1 {
		return r.Returns[0], 0
	}
	return stat.MeanStdDev(r.Returns, nil)
}

func (r *RewardStats) MeanLength() float64 {
	if len(r.Lengths) == 0 {
		return 0
	}
	return stat.Mean(r.Lengths, nil)
}

// WinRate over the episodes that reached a battle result.
func (r *RewardStats) WinRate() float64 {
	decided := r.Results[Victory] + r.Results[Defeat] + r.Results[Draw]
	if decided == 0 {
		return 0
	}
	return float64(r.Results[Victory]) / float64(decided)
}

func (r *RewardStats) String() string {
	mean, std := r.MeanReturn()
	return fmt.Sprintf("episodes: %d, return: %.2f ± %.2f, length: %.1f, wins: %d, losses: %d, draws: %d",
		len(r.Returns), mean, std, r.MeanLength(), r.Results[Victory], r.Results[Defeat], r.Results[Draw])
}

// RewardAnalyzer collects the return, length and result of every episode
// that completed without error.
type RewardAnalyzer struct {
	stats *RewardStats
}

var _ Analyzer = &RewardAnalyzer{}

func NewRewardAnalyzer() *RewardAnalyzer {
	r := &RewardAnalyzer{}
	r.Reset()
	return r
}

func (r *RewardAnalyzer) Analyze(_ int, _ string, eCtx *EpisodeContext) {
	if eCtx.Err != nil || eCtx.TimedOut {
		return
	}
	r.stats.Returns = append(r.stats.Returns, eCtx.Trace.Return())
	r.stats.Lengths = append(r.stats.Lengths, float64(eCtx.Trace.Len()))
	if eCtx.Result.Terminal() {
		r.stats.Results[eCtx.Result] += 1
	}
}

func (r *RewardAnalyzer) DataSet() DataSet {
	return r.stats
}

func (r *RewardAnalyzer) Stats() *RewardStats {
	return r.stats
}

func (r *RewardAnalyzer) Reset() {
	r.stats = &RewardStats{
		Returns: make([]float64, 0),
		Lengths: make([]float64, 0),
		Results: make(map[BattleResult]int),
	}
}

// RewardPlotter draws the episode returns of every experiment in a run.
func RewardPlotter(plotPath string) Comparator {
	return func(run int, names []string, ds []DataSet) {
		if err := util.EnsureDir(plotPath); err != nil {
			return
		}
		p := plot.New()
		p.Title.Text = "Comparison"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "Return"
		for i := 0; i < len(names); i++ {
			stats, ok := ds[i].(*RewardStats)
			if !ok || len(stats.Returns) == 0 {
				continue
			}
			points := make(plotter.XYs, len(stats.Returns))
			for j, v := range stats.Returns {
				points[j] = plotter.XY{
					X: float64(j),
					Y: v,
				}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
		}
		p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_returns.png"))
	}
}

// RewardPrinter writes a one line summary per experiment to the given sink.
func RewardPrinter(out func(string)) Comparator {
	return func(run int, names []string, ds []DataSet) {
		for i, name := range names {
			stats, ok := ds[i].(*RewardStats)
			if !ok {
				continue
			}
			out(fmt.Sprintf("run %d, %s: %s", run, name, stats.String()))
		}
	}
}
