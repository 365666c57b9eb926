package target

import (
	"testing"
	"time"

	checker "gopkg.in/check.v1"
)

func Test(t *testing.T) { checker.TestingT(t) }

type TargetSuite struct{}

var _ = checker.Suite(&TargetSuite{})

func (s *TargetSuite) TestDifficultyOneIsMaxTarget(c *checker.C) {
	got, err := TargetFromDifficulty(1)
	c.Assert(err, checker.IsNil)
	want := Target{}
	for i := range want {
		want[i] = 0xff
	}
	c.Assert(got, checker.Equals, want)
}

func (s *TargetSuite) TestTargetFromDifficultyZeroErrors(c *checker.C) {
	_, err := TargetFromDifficulty(0)
	c.Assert(err, checker.Equals, ErrZeroDifficulty)
}

func (s *TargetSuite) TestDifficultyFromTargetZeroErrors(c *checker.C) {
	_, err := DifficultyFromTarget(Target{})
	c.Assert(err, checker.Equals, ErrZeroTarget)
}

func (s *TargetSuite) TestTargetDifficultyRoundTrip(c *checker.C) {
	for _, d := range []Difficulty{1, 2, 7, 1000, 1_000_000, 123_456_789} {
		t, err := TargetFromDifficulty(d)
		c.Assert(err, checker.IsNil)
		back, err := DifficultyFromTarget(t)
		c.Assert(err, checker.IsNil)
		// Integer division is lossy at the margins; the round trip must
		// land within one unit of the original difficulty.
		diff := int64(back) - int64(d)
		if diff < 0 {
			diff = -diff
		}
		c.Assert(diff <= 1, checker.Equals, true)
	}
}

func (s *TargetSuite) TestHigherDifficultyIsNumericallySmallerTarget(c *checker.C) {
	easy, err := TargetFromDifficulty(10)
	c.Assert(err, checker.IsNil)
	hard, err := TargetFromDifficulty(10_000)
	c.Assert(err, checker.IsNil)
	c.Assert(MeetsTarget(hard, easy), checker.Equals, true)
	c.Assert(MeetsTarget(easy, hard), checker.Equals, false)
}

func (s *TargetSuite) TestParseTargetHexRoundTrip(c *checker.C) {
	want, err := TargetFromDifficulty(42)
	c.Assert(err, checker.IsNil)
	got, err := ParseTargetHex(want.Hex())
	c.Assert(err, checker.IsNil)
	c.Assert(got, checker.Equals, want)
}

func (s *TargetSuite) TestParseTargetHexRejectsWrongWidth(c *checker.C) {
	_, err := ParseTargetHex("aabb")
	c.Assert(err, checker.NotNil)
}

func (s *TargetSuite) TestParseTargetHexRejectsNonHex(c *checker.C) {
	_, err := ParseTargetHex("not-hex-zz-not-hex-zz-not-hex-zz")
	c.Assert(err, checker.NotNil)
}

func (s *TargetSuite) TestMeetsTargetEqualBoundary(c *checker.C) {
	t := Target{}
	t[31] = 5
	c.Assert(MeetsTarget(t, t), checker.Equals, true)
}

func (s *TargetSuite) TestMeetsTargetJustAbove(c *checker.C) {
	t := Target{}
	t[31] = 5
	digest := Target{}
	digest[31] = 6
	c.Assert(MeetsTarget(digest, t), checker.Equals, false)
}

func (s *TargetSuite) TestRetargetNoOpWhenOnSchedule(c *checker.C) {
	now := time.Now()
	prevTime := now.Add(-targetBlockTime)
	got := Retarget(now, prevTime, 1000)
	c.Assert(got, checker.Equals, Difficulty(1000))
}

func (s *TargetSuite) TestRetargetIncreasesWhenBlocksArriveFast(c *checker.C) {
	prevTime := time.Now().Add(-targetBlockTime / 10)
	now := time.Now()
	got := Retarget(now, prevTime, 1000)
	c.Assert(got > 1000, checker.Equals, true)
}

func (s *TargetSuite) TestRetargetDecreasesWhenBlocksArriveSlow(c *checker.C) {
	prevTime := time.Now().Add(-targetBlockTime * 10)
	now := time.Now()
	got := Retarget(now, prevTime, 1000)
	c.Assert(got < 1000, checker.Equals, true)
}

func (s *TargetSuite) TestRetargetClampedToMaxFactor(c *checker.C) {
	prevTime := time.Now().Add(-targetBlockTime * 1000)
	now := time.Now()
	got := Retarget(now, prevTime, 1000)
	c.Assert(got, checker.Equals, Difficulty(1000/maxAdjustFactor))
}

func (s *TargetSuite) TestRetargetNeverGoesBelowOne(c *checker.C) {
	prevTime := time.Now().Add(-targetBlockTime * 1000)
	now := time.Now()
	got := Retarget(now, prevTime, 2)
	c.Assert(got >= 1, checker.Equals, true)
}
