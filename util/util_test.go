package util_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/origami-ms/wrensramp/util"
)

func ExampleFormatSetting() {
	fmt.Println(util.FormatSetting(20))
	fmt.Println(util.FormatSetting(0.1 + 0.2))
	fmt.Println(util.FormatSetting(12.5))
	// Output:
	// 20
	// 0.3
	// 12.5
}

func ExampleIntSliceToDelimited() {
	fmt.Println(util.IntSliceToDelimited([]int{10, 15, 30, 5}, " "))
	// Output: 10 15 30 5
}

func TestFormatSettingExponent(t *testing.T) {
	assert.Equal(t, "1E-05", util.FormatSetting(0.00001))
	assert.Equal(t, "0.0001", util.FormatSetting(0.0001))
	assert.Equal(t, "1E+15", util.FormatSetting(1e15))
	assert.Equal(t, "5.55111512312578E-17", util.FormatSetting(5.551115123125783e-17))
}

func TestFormatSettingNegativeZero(t *testing.T) {
	assert.Equal(t, "0", util.FormatSetting(math.Copysign(0, -1)))
}

func TestFormatSettingNegative(t *testing.T) {
	assert.Equal(t, "-4", util.FormatSetting(-4))
	assert.Equal(t, "-0.25", util.FormatSetting(-0.25))
}

func TestFloatSliceToDelimited(t *testing.T) {
	out := util.FloatSliceToDelimited([]float64{0, 10, 22.5}, " ")
	assert.Equal(t, "0 10 22.5", out)
}

func TestParseBracketList(t *testing.T) {
	assert.Equal(t, []string{"10", "15", "30"}, util.ParseBracketList(" [10 15  30] "))
	assert.Equal(t, []string{"1"}, util.ParseBracketList("1"))
	assert.Empty(t, util.ParseBracketList("[]"))
}

func TestMillisToDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, util.MillisToDuration(1500))
}
