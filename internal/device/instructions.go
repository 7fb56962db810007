package device

import "strings"

// Instructions returns the factory reset steps for a device brand/model.
// The wording matches what each vendor's settings app actually shows; the
// generic fallback covers everything else.
func Instructions(brand, model string) []string {
	brand = strings.ToLower(brand)
	model = strings.ToLower(model)

	switch brand {
	case "samsung":
		steps := []string{
			"1. Go to Settings > General management > Reset",
			"2. Tap 'Factory data reset'",
			"3. Review and tap 'Reset'",
			"4. Enter your PIN and tap 'Delete all'",
		}
		if strings.Contains(model, "s24") || strings.Contains(model, "s25") {
			steps = append(steps, "", "Note: One UI may require Samsung account verification.")
		}
		return steps
	case "google":
		return []string{
			"1. Go to Settings > System > Reset options",
			"2. Tap 'Erase all data (factory reset)'",
			"3. Tap 'Erase all data' to confirm",
			"4. Enter your PIN if prompted",
			"5. Wait for the device to restart",
		}
	case "oneplus":
		return []string{
			"1. Go to Settings > System > Reset options",
			"2. Tap 'Erase all data (factory reset)'",
			"3. Tap 'Reset phone'",
			"4. Enter your PIN and confirm",
		}
	case "motorola":
		return []string{
			"1. Go to Settings > System > Reset options",
			"2. Tap 'Erase all data (factory reset)'",
			"3. Confirm and enter your PIN",
		}
	case "nothing", "cmf":
		return []string{
			"1. Go to Settings > System > Reset options",
			"2. Tap 'Erase all data (factory reset)'",
			"3. Tap 'Erase all data' and confirm",
		}
	default:
		return []string{
			"1. Go to Settings > System (or General management)",
			"2. Find 'Reset' or 'Reset options'",
			"3. Select 'Factory data reset' or 'Erase all data'",
			"4. Follow the on-screen prompts to confirm",
			"",
			"Note: steps vary by manufacturer and Android version.",
		}
	}
}
