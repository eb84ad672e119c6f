package chartcrafter

// GeneratePasswordFrom exposes the generator with a custom random source.
var GeneratePasswordFrom = generatePassword
