// Package engine содержит валидацию и рендеринг PipelineSpec.
//
// Включает:
//   - validate.go — проверка спецификации перед выполнением
//   - template.go — рендеринг команд стейджей ({{ .Inputs.x }})
//
// Engine отвечает за понимание структуры pipeline до того,
// как runner начнёт выполнять стейджи. Порядок выполнения
// задан порядком списка stages — зависимостей и DAG здесь нет,
// стейджи выполняются строго последовательно.
package engine
