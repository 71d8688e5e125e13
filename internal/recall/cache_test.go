package recall

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recall-cli/internal/model"
)

func result(vin string, numbers ...string) *model.VinScrapeResult {
	r := &model.VinScrapeResult{VIN: vin, Primary: model.PrimaryOutcome{Success: true}}
	for _, n := range numbers {
		r.Primary.Recalls = append(r.Primary.Recalls, model.RecallEntry{Number: n, Type: model.TypeRecall})
	}
	return r
}

func TestBuild_UniqueAcrossVINs(t *testing.T) {
	// 100 VINs sharing 5 recall numbers must yield 5 lookups, not 100.
	var results []*model.VinScrapeResult
	for i := 0; i < 100; i++ {
		results = append(results, result(fmt.Sprintf("VIN%03d", i), fmt.Sprintf("24V68%d", i%5)))
	}

	c := Build(results)
	assert.Len(t, c.Numbers(), 5)
	assert.Equal(t, 20, c.VINCount("24V680"))
}

func TestBuild_SkipsPlaceholdersAndFailures(t *testing.T) {
	failed := result("VINBAD")
	failed.Primary = model.PrimaryOutcome{Success: false, Error: "timeout"}

	results := []*model.VinScrapeResult{
		result("VIN001", "No recall information"),
		result("VIN002", "", "24V684"),
		result("VIN003", "NONE", "n/a", "--"),
		failed,
	}

	c := Build(results)
	assert.Equal(t, []string{"24V684"}, c.Numbers())
}

func TestBuild_DedupesWithinOneVIN(t *testing.T) {
	c := Build([]*model.VinScrapeResult{result("VIN001", "24V684", "24V684")})
	assert.Equal(t, []string{"24V684"}, c.Numbers())
	assert.Equal(t, 1, c.VINCount("24V684"))
}

func TestApply_FanOutSharesOneValue(t *testing.T) {
	a := result("VIN001", "24V684")
	b := result("VIN002", "24V684", "23E012")

	c := Build([]*model.VinScrapeResult{a, b})
	c.Resolve("24V684", model.EaInfo{Number: "24V684", Exists: true, EANumber: "EA-1009"})

	found := c.Apply()
	assert.Equal(t, 1, found)

	require.Contains(t, a.RecallToEA, "24V684")
	assert.Equal(t, a.RecallToEA["24V684"], b.RecallToEA["24V684"])
	assert.Equal(t, "EA-1009", b.RecallToEA["24V684"].EANumber)

	// Unresolved number rendered as explicit not-found, not omitted.
	require.Contains(t, b.RecallToEA, "23E012")
	assert.False(t, b.RecallToEA["23E012"].Exists)
}

func TestResolve_FirstAnswerWins(t *testing.T) {
	c := Build([]*model.VinScrapeResult{result("VIN001", "24V684")})
	c.Resolve("24V684", model.EaInfo{Number: "24V684", Exists: true, EANumber: "EA-1"})
	c.Resolve("24V684", model.EaInfo{Number: "24V684", Exists: true, EANumber: "EA-2"})
	assert.True(t, c.Resolved("24V684"))

	c.Apply()
	res := c.vins["24V684"][0]
	assert.Equal(t, "EA-1", res.RecallToEA["24V684"].EANumber)
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(""))
	assert.True(t, IsPlaceholder("No Recall Information"))
	assert.True(t, IsPlaceholder("  none  "))
	assert.True(t, IsPlaceholder("--"))
	assert.False(t, IsPlaceholder("24V684"))
}
