package forms

// Registry dispatches a block to its form-specific engine by the form's
// canonical string name.
func Registry() map[string]Engine {
	return map[string]Engine{
		"factorial":      FactorialEngine{},
		"primorial":      PrimorialEngine{},
		"kbn":            KBNEngine{},
		"palindromic":    PalindromicEngine{},
		"near_repdigit":  NearRepdigitEngine{},
		"cullen_woodall": CullenWoodallEngine{},
		"carol_kynea":    CarolKyneaEngine{},
		"wagstaff":       WagstaffEngine{},
		"twin":           TwinEngine{},
		"sophie_germain": SophieGermainEngine{},
		"repunit":        RepunitEngine{},
		"gen_fermat":     GenFermatEngine{},
	}
}
