package config

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.OutputDir == "" {
		addf("output_dir is required")
	}
	if !lo.Contains(Variants(), c.Variant) {
		addf("unknown variant %q, must be one of %s", c.Variant, strings.Join(Variants(), ", "))
	}
	if c.Workers < 1 {
		addf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Tools.SumoHome == "" {
		addf("tools.sumo_home is required (or set %s)", EnvSumoHome)
	}
	if c.Tools.Timeout < 0 {
		addf("tools.timeout must not be negative")
	}
	if !strings.HasPrefix(c.Export.Extension, ".") {
		addf("export.extension must start with '.', got %q", c.Export.Extension)
	}

	problems = append(problems, c.validateDemand()...)

	if IsSynthetic(c.Variant) {
		if c.Synthetic.Iterations < 1 {
			addf("synthetic.iterations must be positive")
		}
		if c.Synthetic.Count < 1 {
			addf("synthetic.count must be positive")
		}
	} else {
		problems = append(problems, c.validateRegions()...)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}

func (c *Config) validateDemand() []string {
	var problems []string

	if c.Demand.EndTime <= c.Demand.StartTime {
		problems = append(problems, fmt.Sprintf("demand.end_time (%v) must be after demand.start_time (%v)", c.Demand.EndTime, c.Demand.StartTime))
	}
	if c.Demand.Mobiles < 1 {
		problems = append(problems, "demand.mobiles must be positive")
	}
	if len(c.Demand.VehicleClasses) == 0 {
		problems = append(problems, "demand.vehicle_classes must not be empty")
	}
	if lo.Contains(c.Demand.VehicleClasses, "") {
		problems = append(problems, "demand.vehicle_classes must not contain empty names")
	}
	for _, dup := range lo.FindDuplicates(c.Demand.VehicleClasses) {
		problems = append(problems, fmt.Sprintf("demand.vehicle_classes lists %q twice", dup))
	}

	return problems
}

func (c *Config) validateRegions() []string {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Regions) == 0 {
		addf("regions must not be empty for variant %q", c.Variant)
	}

	for i, region := range c.Regions {
		if region.Query == "" && !region.HasCoordinates() {
			addf("regions[%d]: query or lat/lon is required", i)
		}
		if region.Name == "" {
			addf("regions[%d]: name is required when it cannot be derived from the query", i)
		}
		if (region.Lat == nil) != (region.Lon == nil) {
			addf("regions[%d]: lat and lon must be set together", i)
		}
		if region.Lat != nil && (*region.Lat < -90 || *region.Lat > 90) {
			addf("regions[%d]: lat %v out of range", i, *region.Lat)
		}
		if region.Lon != nil && (*region.Lon < -180 || *region.Lon > 180) {
			addf("regions[%d]: lon %v out of range", i, *region.Lon)
		}
		if region.Radius <= 0 {
			addf("regions[%d]: radius must be positive", i)
		}
	}

	names := lo.Map(c.Regions, func(r Region, _ int) string { return r.Name })
	for _, dup := range lo.FindDuplicates(names) {
		if dup != "" {
			addf("region name %q is used twice, artifacts would collide", dup)
		}
	}

	needGeocoder := lo.SomeBy(c.Regions, func(r Region) bool { return !r.HasCoordinates() })
	if needGeocoder && c.Geocoder.URL == "" {
		addf("geocoder.url is required when a region has no coordinates")
	}

	return problems
}
