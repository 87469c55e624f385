package rules

// DefaultProfile is the conservative profile used for unrecognised species.
func DefaultProfile() Profile {
	return Profile{
		Name:                   DefaultProfileName,
		WateringIntervalDays:   7,
		WaterAmountML:          250,
		FertilizerIntervalDays: 30,
		FertilizerType:         "balanced_liquid",
		LightPPFDMin:           100,
		LightPPFDMax:           300,
		SoilMoistureTarget:     0.5,
		ReviewIntervalDays:     7,
		Notes:                  "Generic houseplant care: water when the top few centimetres of soil are dry.",
	}
}

// BuiltinProfiles returns the species profiles compiled into the binary.
// Amounts assume a 15 cm pot.
func BuiltinProfiles() []Profile {
	return []Profile{
		{
			Name: "monstera", Aliases: []string{"monstera_deliciosa", "swiss_cheese_plant"},
			WateringIntervalDays: 7, WaterAmountML: 500, FertilizerIntervalDays: 30, FertilizerType: "balanced_liquid",
			LightPPFDMin: 150, LightPPFDMax: 400, SoilMoistureTarget: 0.5, ReviewIntervalDays: 7,
			Notes: "Bright indirect light; let the top third of the soil dry between waterings.",
		},
		{
			Name: "ficus", Aliases: []string{"ficus_elastica", "rubber_plant", "weeping_fig"},
			WateringIntervalDays: 7, WaterAmountML: 400, FertilizerIntervalDays: 30, FertilizerType: "balanced_liquid",
			LightPPFDMin: 200, LightPPFDMax: 500, SoilMoistureTarget: 0.45, ReviewIntervalDays: 7,
			Notes: "Dislikes being moved and cold drafts; leaf drop usually signals a change in light or watering.",
		},
		{
			Name: "pothos", Aliases: []string{"epipremnum_aureum", "devils_ivy"},
			WateringIntervalDays: 8, WaterAmountML: 300, FertilizerIntervalDays: 30, FertilizerType: "balanced_liquid",
			LightPPFDMin: 75, LightPPFDMax: 300, SoilMoistureTarget: 0.4, ReviewIntervalDays: 10,
			Notes: "Tolerates low light; yellow leaves usually mean overwatering.",
		},
		{
			Name: "snake_plant", Aliases: []string{"sansevieria", "dracaena_trifasciata"},
			WateringIntervalDays: 14, WaterAmountML: 250, FertilizerIntervalDays: 60, FertilizerType: "diluted_balanced",
			LightPPFDMin: 50, LightPPFDMax: 400, SoilMoistureTarget: 0.2, ReviewIntervalDays: 14,
			Notes: "Let the soil dry completely; rot is the main risk.",
		},
		{
			Name: "zz_plant", Aliases: []string{"zamioculcas", "zamioculcas_zamiifolia"},
			WateringIntervalDays: 14, WaterAmountML: 250, FertilizerIntervalDays: 60, FertilizerType: "diluted_balanced",
			LightPPFDMin: 50, LightPPFDMax: 300, SoilMoistureTarget: 0.25, ReviewIntervalDays: 14,
			Notes: "Stores water in its rhizomes; water sparingly.",
		},
		{
			Name: "succulent", Aliases: []string{"echeveria", "aloe", "aloe_vera"},
			WateringIntervalDays: 14, WaterAmountML: 150, FertilizerIntervalDays: 45, FertilizerType: "cactus_fertilizer",
			LightPPFDMin: 300, LightPPFDMax: 800, SoilMoistureTarget: 0.15, ReviewIntervalDays: 14,
			Notes: "Soak and dry; needs strong light to stay compact.",
		},
		{
			Name: "cactus", Aliases: []string{"cactaceae"},
			WateringIntervalDays: 21, WaterAmountML: 100, FertilizerIntervalDays: 60, FertilizerType: "cactus_fertilizer",
			LightPPFDMin: 400, LightPPFDMax: 1000, SoilMoistureTarget: 0.1, ReviewIntervalDays: 21,
			Notes: "Keep almost dry in winter.",
		},
		{
			Name: "fern", Aliases: []string{"boston_fern", "nephrolepis"},
			WateringIntervalDays: 3, WaterAmountML: 300, FertilizerIntervalDays: 30, FertilizerType: "half_strength_liquid",
			LightPPFDMin: 50, LightPPFDMax: 200, SoilMoistureTarget: 0.7, ReviewIntervalDays: 5,
			Notes: "Keep evenly moist and humid; crispy fronds mean dry air.",
		},
		{
			Name: "orchid", Aliases: []string{"phalaenopsis", "moth_orchid"},
			WateringIntervalDays: 7, WaterAmountML: 100, FertilizerIntervalDays: 14, FertilizerType: "orchid_fertilizer",
			LightPPFDMin: 100, LightPPFDMax: 250, SoilMoistureTarget: 0.4, ReviewIntervalDays: 7,
			Notes: "Water when roots turn silvery; never leave standing in water.",
		},
		{
			Name: "calathea", Aliases: []string{"prayer_plant", "goeppertia"},
			WateringIntervalDays: 5, WaterAmountML: 300, FertilizerIntervalDays: 30, FertilizerType: "balanced_liquid",
			LightPPFDMin: 50, LightPPFDMax: 200, SoilMoistureTarget: 0.65, ReviewIntervalDays: 7,
			Notes: "Sensitive to hard water and low humidity.",
		},
		{
			Name: "peace_lily", Aliases: []string{"spathiphyllum"},
			WateringIntervalDays: 6, WaterAmountML: 350, FertilizerIntervalDays: 42, FertilizerType: "balanced_liquid",
			LightPPFDMin: 50, LightPPFDMax: 250, SoilMoistureTarget: 0.6, ReviewIntervalDays: 7,
			Notes: "Droops visibly when thirsty and recovers quickly after watering.",
		},
		{
			Name: "basil", Aliases: []string{"ocimum_basilicum"},
			WateringIntervalDays: 2, WaterAmountML: 250, FertilizerIntervalDays: 21, FertilizerType: "balanced_liquid",
			LightPPFDMin: 400, LightPPFDMax: 800, SoilMoistureTarget: 0.55, ReviewIntervalDays: 5,
			Notes: "Pinch flower buds to keep leaves coming.",
		},
		{
			Name: "tomato", Aliases: []string{"solanum_lycopersicum"},
			WateringIntervalDays: 2, WaterAmountML: 1000, FertilizerIntervalDays: 14, FertilizerType: "tomato_feed",
			LightPPFDMin: 600, LightPPFDMax: 1200, SoilMoistureTarget: 0.6, ReviewIntervalDays: 3,
			Notes: "Water deeply and regularly once fruit sets to avoid splitting.",
		},
	}
}
