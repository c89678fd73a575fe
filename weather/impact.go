package weather

import "github.com/dbpranger/delay-api/models"

var descriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// Describe returns the text for a WMO weather code
func Describe(code int) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return "Unknown"
}

// Impact scores how strongly the weather is expected to affect service.
// Score 6 and above is high, 3 and above medium.
func Impact(w models.Weather) models.WeatherImpact {
	score := 0
	factors := []string{}

	switch {
	case w.TemperatureC < 0:
		score += 2
		factors = append(factors, "Freezing temperatures")
	case w.TemperatureC < 5:
		score++
		factors = append(factors, "Cold weather")
	case w.TemperatureC > 30:
		score++
		factors = append(factors, "Heat")
	}

	switch {
	case w.PrecipitationMM > 5:
		score += 3
		factors = append(factors, "Heavy precipitation")
	case w.PrecipitationMM > 1:
		score += 2
		factors = append(factors, "Moderate precipitation")
	case w.PrecipitationMM > 0:
		score++
		factors = append(factors, "Light precipitation")
	}

	switch {
	case w.WindSpeedKMH > 50:
		score += 3
		factors = append(factors, "Strong winds")
	case w.WindSpeedKMH > 30:
		score += 2
		factors = append(factors, "Moderate winds")
	case w.WindSpeedKMH > 20:
		score++
		factors = append(factors, "Light winds")
	}

	// rain codes score without adding a factor
	switch code := w.WeatherCode; {
	case code >= 95:
		score += 3
		factors = append(factors, "Thunderstorm")
	case code >= 71:
		score += 2
		factors = append(factors, "Snow")
	case code >= 61:
		score++
	case code >= 45:
		score++
		factors = append(factors, "Reduced visibility")
	}

	impact := models.WeatherImpact{
		Level:              "low",
		Score:              score,
		Description:        "Normal operations expected",
		Factors:            factors,
		WeatherDescription: Describe(w.WeatherCode),
	}
	switch {
	case score >= 6:
		impact.Level = "high"
		impact.Description = "Significant delays expected"
	case score >= 3:
		impact.Level = "medium"
		impact.Description = "Some delays possible"
	}
	return impact
}
