// Package workflow compiles tabular, row-per-node workflow declarations into
// validated directed graphs and executes them against a shared state
// container.
//
// The pipeline is: Parser (CSV rows -> unvalidated per-graph row sets),
// Builder (row sets -> immutable GraphDefinition, all declaration problems
// reported in one pass), Engine (walks the graph, invoking registered agent
// capabilities and the model router, with conditional branching, dynamic
// routing, fan-out/join parallelism and sub-workflow composition), and a
// SuccessPolicy that derives the overall outcome from the step log.
package workflow
