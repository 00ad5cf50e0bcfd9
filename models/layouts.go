package models

// The planning map and the larger learning map, plus a tiny grid for development.
// Tokens carry a label suffix (S12, O3) that is displayed but otherwise ignored.
var (
	PlanningLayout [][]string = [][]string{
		{"S0", "S1", "P1", "O1", "S3", "O2", "S4", "S5"},
		{"O3", "S6", "S7", "S8", "S9", "S10", "S11", "O4"},
		{"S12", "P2", "S14", "O5", "S15", "P3", "S17", "S18"},
		{"S19", "S20", "S21", "S22", "M", "S24", "S25", "O6"},
		{"S26", "O7", "O8", "S27", "S28", "S29", "P4", "S31"},
		{"S32", "O9", "S33", "S34", "O10", "S35", "S36", "S37"},
	}

	LearningLayout [][]string = ParseLayout([]string{
		"S0   S1   S2   S3   S4   S5   S6   S7   S8   S9   S10  S11  S12  S13  S14",
		"S15  S16  S17  S18  S19  S20  S21  S22  S23  S24  S25  S26  S27  S28  S29",
		"S30  S31  W0   W1   W2   S32  W3   W4   W5   S33  S34  S35  S36  S37  S38",
		"S39  S40  W6   S41  S42  S43  S44  S45  W7   S46  S47  S48  W8   W9   S49",
		"S50  S51  W10  S52  S53  S54  S55  S56  S57  S58  S59  W11  W12  W13  S60",
		"S61  S62  S63  S64  S65  S66  S67  S68  G    S69  S70  S71  S72  S73  S74",
		"S75  S76  S77  S78  S79  S80  S81  S82  W14  W15  S83  S84  S85  S86  S87",
		"S88  S89  W16  W17  W18  S90  S91  S92  S93  W19  W20  W21  S94  S95  W22",
		"S96  S97  W23  S98  S99  S100 S101 S102 S103 S104 S105 S106 S107 S108 S109",
		"S110 S111 W24  S112 S113 S114 W25  S115 S116 W26  W27  W28  W29  S117 S118",
		"S119 S120 S121 S122 S123 S124 S125 S126 S127 S128 S129 S130 S131 S132 S133",
		"S134 S135 S136 S137 W30  W31  W32  S138 S139 S140 S141 S142 S143 S144 W33",
	})

	TinyLayout [][]string = [][]string{
		{"S0", "G"},
		{"W0", "S1"},
	}
)

// Default hyper-parameter sweeps: discount factors for planning and
// move success probabilities for learning.
var (
	PlanningDiscounts    = []float64{0.86, 0.90, 0.94, 0.98}
	LearningSuccessProbs = []float64{0.3, 0.7, 0.9}
)
