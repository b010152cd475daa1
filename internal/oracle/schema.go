package oracle

// Gemini responseSchema（OpenAPI 子集）

var setupSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"companyBackground": map[string]any{"type": "STRING"},
		"characters": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"name":  map[string]any{"type": "STRING"},
					"title": map[string]any{"type": "STRING"},
				},
				"required": []string{"name", "title"},
			},
		},
	},
	"required": []string{"companyBackground", "characters"},
}

var nightSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"eliminated": map[string]any{
			"type":        "STRING",
			"description": "Name of the person to fire. Must be one of the candidates.",
		},
		"reason": map[string]any{
			"type":        "STRING",
			"description": "Why they were fired.",
		},
	},
	"required": []string{"eliminated", "reason"},
}

var votesSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"voter":  map[string]any{"type": "STRING", "description": "Name of the NPC casting the vote"},
			"votee":  map[string]any{"type": "STRING", "description": "Name of the character voted for"},
			"reason": map[string]any{"type": "STRING", "description": "Reason for the vote, a few words"},
		},
		"required": []string{"voter", "votee", "reason"},
	},
}

func dayIntroSchema(alive []Persona) map[string]any {
	dialogues := make(map[string]any, len(alive))
	for _, p := range alive {
		dialogues[p.Name] = map[string]any{"type": "STRING"}
	}

	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"incident": map[string]any{"type": "STRING"},
			"dialogues": map[string]any{
				"type":       "OBJECT",
				"properties": dialogues,
			},
		},
		"required": []string{"incident", "dialogues"},
	}
}
