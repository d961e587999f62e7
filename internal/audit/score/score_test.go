package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sitepulse/engine/pkg/types"
)

func mk(id string, status types.CheckStatus) types.Check {
	return types.Check{ID: id, Status: status}
}

func allPassChecks() []types.Check {
	return []types.Check{
		mk(types.CheckSitemap, types.StatusPass),
		mk(types.CheckCanonical, types.StatusPass),
		mk(types.CheckRobots, types.StatusPass),
		mk(types.CheckNoindex, types.StatusPass),
		mk(types.CheckTitleLength, types.StatusPass),
		mk(types.CheckTTFB, types.StatusPass),
		mk(types.CheckImgModern, types.StatusPass),
		mk(types.CheckHTTP, types.StatusPass),
	}
}

func TestComputeAllPass(t *testing.T) {
	assert.Equal(t, 100, Compute(allPassChecks()))
}

func TestComputeEmpty(t *testing.T) {
	assert.Equal(t, 0, Compute(nil))
	assert.Equal(t, 0, Compute([]types.Check{}))
}

func TestComputeWeightedHarmonicMean(t *testing.T) {
	// SEO: (2.0*1 + 0.8*0.5)/2.8, PERF: (2.4*0.5 + 1.4*1)/3.8, SEC: 1.
	// 100 / (0.55*2.8/2.4 + 0.35*3.8/2.6 + 0.10) = 79.795 -> 80.
	checks := []types.Check{
		mk(types.CheckCanonical, types.StatusPass),
		mk(types.CheckTitleLength, types.StatusWarn),
		mk(types.CheckPSI, types.StatusWarn),
		mk(types.CheckTTFB, types.StatusPass),
		mk(types.CheckHTTP, types.StatusPass),
	}
	assert.Equal(t, 80, Compute(checks))
}

func TestComputeSingleCategory(t *testing.T) {
	// Only SEO present: the mean collapses to the category score.
	assert.Equal(t, 100, Compute([]types.Check{mk(types.CheckSitemap, types.StatusPass)}))

	// (1.6*1 + 0.3*0.5)/1.9 = 0.92105 -> 92.
	checks := []types.Check{
		mk(types.CheckRobots, types.StatusPass),
		mk(types.CheckFavicon, types.StatusWarn),
	}
	assert.Equal(t, 92, Compute(checks))
}

func TestComputeCategoryFloor(t *testing.T) {
	// SEO fails entirely and is floored at 0.05 instead of zeroing the
	// harmonic mean: 100/(0.55/0.05 + 0.35 + 0.10) = 8.73 -> 9.
	checks := []types.Check{
		mk(types.CheckCanonical, types.StatusFail),
		mk(types.CheckTitleLength, types.StatusFail),
		mk(types.CheckTTFB, types.StatusPass),
		mk(types.CheckHTTP, types.StatusPass),
	}
	assert.Equal(t, 9, Compute(checks))
}

func TestComputeNoindexGate(t *testing.T) {
	checks := append(allPassChecks(), mk(types.CheckNoindex, types.StatusFail))
	assert.Equal(t, 0, Compute(checks))
}

func TestComputeHTTPGate(t *testing.T) {
	// Raw score 96 (SEC = 4.6/6.6, others perfect), capped at 40.
	checks := []types.Check{
		mk(types.CheckHTTP, types.StatusFail),
		mk(types.CheckSecurityHeaders, types.StatusPass),
		mk(types.CheckHTTPSRedirect, types.StatusPass),
		mk(types.CheckMixedContent, types.StatusPass),
		mk(types.CheckCanonical, types.StatusPass),
		mk(types.CheckTTFB, types.StatusPass),
	}
	assert.Equal(t, 40, Compute(checks))
}

func TestComputeCanonicalGate(t *testing.T) {
	// Raw score 93 with every other SEO check passing, capped at 65.
	checks := []types.Check{
		mk(types.CheckCanonical, types.StatusFail),
		mk(types.CheckSitemap, types.StatusPass),
		mk(types.CheckRobots, types.StatusPass),
		mk(types.CheckNoindex, types.StatusPass),
		mk(types.CheckViewport, types.StatusPass),
		mk(types.CheckTitleLength, types.StatusPass),
		mk(types.CheckMetaDescription, types.StatusPass),
		mk(types.CheckImgAlt, types.StatusPass),
		mk(types.CheckOpengraph, types.StatusPass),
		mk(types.CheckFavicon, types.StatusPass),
		mk(types.CheckMetaRobots, types.StatusPass),
		mk(types.CheckWWWCanonical, types.StatusPass),
		mk(types.CheckTTFB, types.StatusPass),
		mk(types.CheckHTTP, types.StatusPass),
	}
	assert.Equal(t, 65, Compute(checks))
}

func TestComputeSitemapRobotsGate(t *testing.T) {
	base := []types.Check{
		mk(types.CheckCanonical, types.StatusPass),
		mk(types.CheckRobots, types.StatusPass),
		mk(types.CheckNoindex, types.StatusPass),
		mk(types.CheckViewport, types.StatusPass),
		mk(types.CheckTitleLength, types.StatusPass),
		mk(types.CheckMetaDescription, types.StatusPass),
		mk(types.CheckImgAlt, types.StatusPass),
		mk(types.CheckOpengraph, types.StatusPass),
		mk(types.CheckFavicon, types.StatusPass),
		mk(types.CheckMetaRobots, types.StatusPass),
		mk(types.CheckWWWCanonical, types.StatusPass),
		mk(types.CheckTTFB, types.StatusPass),
		mk(types.CheckHTTP, types.StatusPass),
	}

	withSitemapFail := append([]types.Check{mk(types.CheckSitemap, types.StatusFail)}, base...)
	assert.Equal(t, 80, Compute(withSitemapFail))

	withRobotsFail := make([]types.Check, 0, len(base)+1)
	withRobotsFail = append(withRobotsFail, mk(types.CheckSitemap, types.StatusPass))
	for _, c := range base {
		if c.ID == types.CheckRobots {
			c.Status = types.StatusFail
		}
		withRobotsFail = append(withRobotsFail, c)
	}
	assert.Equal(t, 80, Compute(withRobotsFail))
}

func TestComputeGatesStack(t *testing.T) {
	// Both http and canonical fail: the lower cap wins.
	checks := []types.Check{
		mk(types.CheckHTTP, types.StatusFail),
		mk(types.CheckSecurityHeaders, types.StatusPass),
		mk(types.CheckHTTPSRedirect, types.StatusPass),
		mk(types.CheckMixedContent, types.StatusPass),
		mk(types.CheckCanonical, types.StatusFail),
		mk(types.CheckSitemap, types.StatusPass),
		mk(types.CheckRobots, types.StatusPass),
		mk(types.CheckNoindex, types.StatusPass),
		mk(types.CheckViewport, types.StatusPass),
		mk(types.CheckTitleLength, types.StatusPass),
		mk(types.CheckMetaDescription, types.StatusPass),
		mk(types.CheckImgAlt, types.StatusPass),
		mk(types.CheckOpengraph, types.StatusPass),
		mk(types.CheckFavicon, types.StatusPass),
		mk(types.CheckMetaRobots, types.StatusPass),
		mk(types.CheckWWWCanonical, types.StatusPass),
		mk(types.CheckTTFB, types.StatusPass),
	}
	got := Compute(checks)
	assert.LessOrEqual(t, got, 40)
}

func TestComputeIgnoresLocked(t *testing.T) {
	// A locked check never contributes even with a scorable status.
	checks := []types.Check{
		mk(types.CheckHTTP, types.StatusFail),
		{ID: types.CheckSecurityHeaders, Status: types.StatusPass, Locked: true},
	}
	// SEC = 0/2 floored to 0.05 -> 5; the http gate cap is above it.
	assert.Equal(t, 5, Compute(checks))
}

func TestComputeIgnoresBlockedAndTimeout(t *testing.T) {
	checks := []types.Check{
		mk(types.CheckBlocked, types.StatusFail),
		mk(types.CheckTimeout, types.StatusWarn),
		mk(types.CheckRobots, types.StatusPass),
		mk(types.CheckFavicon, types.StatusWarn),
	}
	assert.Equal(t, 92, Compute(checks))
}

func TestComputeIgnoresLockedStatus(t *testing.T) {
	checks := []types.Check{{ID: types.CheckTitleLength, Status: types.StatusLocked}}
	assert.Equal(t, 0, Compute(checks))
}
