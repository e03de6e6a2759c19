package xplane

func FeetToMeters(feet float64) float64 {
	return feet * 0.3048
}

func KnotsToMPS(knots float64) float64 {
	return knots * 0.51444444444
}
