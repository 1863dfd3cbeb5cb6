//go:build !race

package onboard

func passwordHashCost() int {
	return DefaultBcryptCost
}
