package ipident

import (
	"fmt"
	"math/rand"
)

// Word lists for generated visitor names. Portuguese noun+adjective
// pairs read naturally for the platform's audience ("LoboVeloz12").
var (
	animals = []string{
		"Lobo", "Tigre", "Falcao", "Jaguar", "Coruja", "Raposa",
		"Tucano", "Arara", "Onca", "Gaviao", "Tatu", "Ariranha",
		"Jacare", "Tamandua", "Veado", "Quati", "Lontra", "Macaco",
	}
	adjectives = []string{
		"Veloz", "Astuto", "Bravo", "Sereno", "Dourado", "Prateado",
		"Noturno", "Valente", "Curioso", "Sagaz", "Feroz", "Tranquilo",
		"Esperto", "Sombrio", "Radiante", "Silencioso",
	}
)

// generateUsername produces a human-readable candidate name. The
// numeric suffix grows with each failed attempt so the space widens
// instead of the loop spinning on a crowded prefix.
func generateUsername(attempt int) string {
	animal := animals[rand.Intn(len(animals))]
	adj := adjectives[rand.Intn(len(adjectives))]
	max := 100
	for i := 0; i < attempt; i++ {
		max *= 10
	}
	return fmt.Sprintf("%s%s%02d", animal, adj, rand.Intn(max))
}
