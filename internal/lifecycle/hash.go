package lifecycle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CalculateInputHash возвращает стабильный SHA-256 (hex) входных данных шага.
//
// Ключи объектов сортируются на всех уровнях вложенности, поэтому
// логически одинаковые payload с разным порядком ключей дают один хэш.
// Используется для дедупликации повторных запусков шага.
func CalculateInputHash(payload map[string]any) (string, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON сериализует значение в канонический JSON.
//
// Значение сначала приводится к дереву map[string]any / []any (структуры
// и типизированные map превращаются в объекты), затем кодируется.
// encoding/json сортирует ключи map при кодировании.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // сохраняем точное представление чисел
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
