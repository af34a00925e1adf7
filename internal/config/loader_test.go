package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmbilon/merets/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		c := config.New()

		Convey("Then the scoring knobs match the documented defaults", func() {
			So(c.ReliabilityWeight, ShouldEqual, 0.50)
			So(c.QualityWeight, ShouldEqual, 0.30)
			So(c.ExperienceWeight, ShouldEqual, 0.20)
			So(c.MinSamples, ShouldEqual, 3)
			So(c.ChangeEpsilon, ShouldEqual, 0.05)
		})

		Convey("Then the bonus gates match the documented defaults", func() {
			So(c.UnitMinutes, ShouldEqual, 30)
			So(c.WeeklyUnitTarget, ShouldEqual, 5)
			So(c.BonusScoreFloor, ShouldEqual, 3.5)
			So(c.BonusMissedCeiling, ShouldEqual, 1)
			So(c.BonusRate, ShouldEqual, 1.5)
		})

		Convey("Then the store defaults to memory", func() {
			So(c.StoreDriver, ShouldEqual, "memory")
		})
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given a clean environment", t, func() {
		os.Unsetenv("MERETS_CONFIG")

		Convey("When loading with no overrides", func() {
			c, err := config.Load(ctx)

			Convey("Then defaults survive", func() {
				So(err, ShouldBeNil)
				So(c.Addr, ShouldEqual, ":9090")
			})
		})

		Convey("When env vars override scalar fields", func() {
			So(os.Setenv("MERETS_ADDR", ":7070"), ShouldBeNil)
			So(os.Setenv("MERETS_UNIT_MINUTES", "45"), ShouldBeNil)
			defer os.Unsetenv("MERETS_ADDR")
			defer os.Unsetenv("MERETS_UNIT_MINUTES")

			c, err := config.Load(ctx)

			Convey("Then the env values win", func() {
				So(err, ShouldBeNil)
				So(c.Addr, ShouldEqual, ":7070")
				So(c.UnitMinutes, ShouldEqual, 45)
			})
		})

		Convey("When a YAML file sets fields and env overrides one", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "merets.yaml")
			yaml := "addr: \":6060\"\nweekly_unit_target: 7\nstore_driver: sqlite\n"
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)

			So(os.Setenv("MERETS_CONFIG", path), ShouldBeNil)
			So(os.Setenv("MERETS_ADDR", ":6061"), ShouldBeNil)
			defer os.Unsetenv("MERETS_CONFIG")
			defer os.Unsetenv("MERETS_ADDR")

			c, err := config.Load(ctx)

			Convey("Then file beats defaults and env beats file", func() {
				So(err, ShouldBeNil)
				So(c.Addr, ShouldEqual, ":6061")
				So(c.WeeklyUnitTarget, ShouldEqual, 7)
				So(c.StoreDriver, ShouldEqual, "sqlite")
			})
		})

		Convey("When the store driver is unknown", func() {
			So(os.Setenv("MERETS_STORE_DRIVER", "papyrus"), ShouldBeNil)
			defer os.Unsetenv("MERETS_STORE_DRIVER")

			_, err := config.Load(ctx)

			Convey("Then loading fails with the invalid-config sentinel", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When the weights are reordered", func() {
			So(os.Setenv("MERETS_RELIABILITY_WEIGHT", "0.1"), ShouldBeNil)
			defer os.Unsetenv("MERETS_RELIABILITY_WEIGHT")

			_, err := config.Load(ctx)

			Convey("Then the ordering constraint rejects them", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}
