package semantic

// EventType is one value of the closed alphabet of semantic change kinds.
// The store rejects events whose type is not part of the alphabet; adding
// a type is a schema-versioned change.
type EventType string

// Layer 1 - structural.
const (
	EventFileAdded         EventType = "file_added"
	EventFileRemoved       EventType = "file_removed"
	EventNodeAdded         EventType = "node_added"
	EventNodeRemoved       EventType = "node_removed"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
)

// Layer 2 - syntactic.
const (
	EventSignatureChanged         EventType = "signature_changed"
	EventDecoratorAdded           EventType = "decorator_added"
	EventDecoratorRemoved         EventType = "decorator_removed"
	EventFunctionMadeAsync        EventType = "function_made_async"
	EventFunctionMadeSync         EventType = "function_made_sync"
	EventInheritanceChanged       EventType = "inheritance_changed"
	EventDefaultParametersAdded   EventType = "default_parameters_added"
	EventDefaultParametersRemoved EventType = "default_parameters_removed"
	EventTypedPropertyChanged     EventType = "typed_property_changed"
	EventVisibilityChanged        EventType = "visibility_changed"
	EventReturnTypeChanged        EventType = "return_type_changed"
	EventReadonlyToggled          EventType = "readonly_toggled"
	EventUnionTypesChanged        EventType = "union_types_changed"
	EventIntersectionTypesChanged EventType = "intersection_types_changed"
)

// Layer 3 - semantic.
const (
	EventControlFlowChanged        EventType = "control_flow_changed"
	EventFunctionMadeGenerator     EventType = "function_made_generator"
	EventGeneratorMadeFunction     EventType = "generator_made_function"
	EventYieldPatternChanged       EventType = "yield_pattern_changed"
	EventReturnPatternChanged      EventType = "return_pattern_changed"
	EventExceptionHandlingAdded    EventType = "exception_handling_added"
	EventExceptionHandlingRemoved  EventType = "exception_handling_removed"
	EventExceptionHandlingChanged  EventType = "exception_handling_changed"
	EventErrorHandlingIntroduced   EventType = "error_handling_introduced"
	EventInternalCallAdded         EventType = "internal_call_added"
	EventInternalCallRemoved       EventType = "internal_call_removed"
	EventComprehensionUsageChanged EventType = "comprehension_usage_changed"
	EventLambdaUsageChanged        EventType = "lambda_usage_changed"
	EventGlobalScopeChanged        EventType = "global_scope_changed"
	EventNonlocalScopeChanged      EventType = "nonlocal_scope_changed"
)

// Layer 4 - behavioral.
const (
	EventFunctionComplexityChanged      EventType = "function_complexity_changed"
	EventFunctionalProgrammingAdopted   EventType = "functional_programming_adopted"
	EventFunctionalProgrammingRemoved   EventType = "functional_programming_removed"
	EventFunctionalProgrammingChanged   EventType = "functional_programming_changed"
	EventAttributeAccessChanged         EventType = "attribute_access_changed"
	EventSubscriptAccessChanged         EventType = "subscript_access_changed"
	EventAssignmentPatternChanged       EventType = "assignment_pattern_changed"
	EventAugmentedAssignmentChanged     EventType = "augmented_assignment_changed"
	EventBinaryOperatorUsageChanged     EventType = "binary_operator_usage_changed"
	EventUnaryOperatorUsageChanged      EventType = "unary_operator_usage_changed"
	EventComparisonOperatorUsageChanged EventType = "comparison_operator_usage_changed"
	EventLogicalOperatorUsageChanged    EventType = "logical_operator_usage_changed"
	EventStringLiteralUsageChanged      EventType = "string_literal_usage_changed"
	EventNumericLiteralUsageChanged     EventType = "numeric_literal_usage_changed"
	EventBooleanLiteralUsageChanged     EventType = "boolean_literal_usage_changed"
	EventAssertionUsageChanged          EventType = "assertion_usage_changed"
	EventClassMethodsChanged            EventType = "class_methods_changed"
	EventClassAttributesChanged         EventType = "class_attributes_changed"
)

// Layer 5a - heuristic AI patterns.
const (
	EventRefactoringExtractMethod      EventType = "refactoring_extract_method"
	EventRefactoringInlineMethod       EventType = "refactoring_inline_method"
	EventOptimizationAlgorithm         EventType = "optimization_algorithm"
	EventOptimizationDataStructure     EventType = "optimization_data_structure"
	EventMemoryOptimization            EventType = "memory_optimization"
	EventDesignPatternImplementation   EventType = "design_pattern_implementation"
	EventDesignPatternRemoval          EventType = "design_pattern_removal"
	EventSecurityImprovement           EventType = "security_improvement"
	EventSecurityVulnerability         EventType = "security_vulnerability"
	EventPerformanceImprovement        EventType = "performance_improvement"
	EventPerformanceRegression         EventType = "performance_regression"
	EventAPIBreakingChange             EventType = "api_breaking_change"
	EventAPIEnhancement                EventType = "api_enhancement"
	EventCodeSimplification            EventType = "code_simplification"
	EventCodeComplication              EventType = "code_complication"
	EventErrorHandlingImprovement      EventType = "error_handling_improvement"
	EventConcurrencyIntroduction       EventType = "concurrency_introduction"
	EventArchitectureChange            EventType = "architecture_change"
)

// Layer 5b - external model findings.
const (
	EventAlgorithmOptimized   EventType = "algorithm_optimized"
	EventDesignPatternApplied EventType = "design_pattern_applied"
	EventManualAnalysis       EventType = "manual_analysis"
)

// Core markers.
const (
	EventParseDegraded EventType = "parse_degraded"
)

// alphabet maps every known event type to the layer that emits it.
// Declaration order here fixes the stable emission order within a
// matched pair (see Rank).
var alphabet = []struct {
	Type  EventType
	Layer Layer
}{
	{EventFileAdded, LayerStructural},
	{EventFileRemoved, LayerStructural},
	{EventNodeAdded, LayerStructural},
	{EventNodeRemoved, LayerStructural},
	{EventDependencyAdded, LayerStructural},
	{EventDependencyRemoved, LayerStructural},

	{EventSignatureChanged, LayerSyntactic},
	{EventDecoratorAdded, LayerSyntactic},
	{EventDecoratorRemoved, LayerSyntactic},
	{EventFunctionMadeAsync, LayerSyntactic},
	{EventFunctionMadeSync, LayerSyntactic},
	{EventInheritanceChanged, LayerSyntactic},
	{EventDefaultParametersAdded, LayerSyntactic},
	{EventDefaultParametersRemoved, LayerSyntactic},
	{EventTypedPropertyChanged, LayerSyntactic},
	{EventVisibilityChanged, LayerSyntactic},
	{EventReturnTypeChanged, LayerSyntactic},
	{EventReadonlyToggled, LayerSyntactic},
	{EventUnionTypesChanged, LayerSyntactic},
	{EventIntersectionTypesChanged, LayerSyntactic},

	{EventControlFlowChanged, LayerSemantic},
	{EventFunctionMadeGenerator, LayerSemantic},
	{EventGeneratorMadeFunction, LayerSemantic},
	{EventYieldPatternChanged, LayerSemantic},
	{EventReturnPatternChanged, LayerSemantic},
	{EventExceptionHandlingAdded, LayerSemantic},
	{EventExceptionHandlingRemoved, LayerSemantic},
	{EventExceptionHandlingChanged, LayerSemantic},
	{EventErrorHandlingIntroduced, LayerSemantic},
	{EventInternalCallAdded, LayerSemantic},
	{EventInternalCallRemoved, LayerSemantic},
	{EventComprehensionUsageChanged, LayerSemantic},
	{EventLambdaUsageChanged, LayerSemantic},
	{EventGlobalScopeChanged, LayerSemantic},
	{EventNonlocalScopeChanged, LayerSemantic},

	{EventFunctionComplexityChanged, LayerBehavioral},
	{EventFunctionalProgrammingAdopted, LayerBehavioral},
	{EventFunctionalProgrammingRemoved, LayerBehavioral},
	{EventFunctionalProgrammingChanged, LayerBehavioral},
	{EventAttributeAccessChanged, LayerBehavioral},
	{EventSubscriptAccessChanged, LayerBehavioral},
	{EventAssignmentPatternChanged, LayerBehavioral},
	{EventAugmentedAssignmentChanged, LayerBehavioral},
	{EventBinaryOperatorUsageChanged, LayerBehavioral},
	{EventUnaryOperatorUsageChanged, LayerBehavioral},
	{EventComparisonOperatorUsageChanged, LayerBehavioral},
	{EventLogicalOperatorUsageChanged, LayerBehavioral},
	{EventStringLiteralUsageChanged, LayerBehavioral},
	{EventNumericLiteralUsageChanged, LayerBehavioral},
	{EventBooleanLiteralUsageChanged, LayerBehavioral},
	{EventAssertionUsageChanged, LayerBehavioral},
	{EventClassMethodsChanged, LayerBehavioral},
	{EventClassAttributesChanged, LayerBehavioral},

	{EventRefactoringExtractMethod, LayerAIPattern},
	{EventRefactoringInlineMethod, LayerAIPattern},
	{EventOptimizationAlgorithm, LayerAIPattern},
	{EventOptimizationDataStructure, LayerAIPattern},
	{EventMemoryOptimization, LayerAIPattern},
	{EventDesignPatternImplementation, LayerAIPattern},
	{EventDesignPatternRemoval, LayerAIPattern},
	{EventSecurityImprovement, LayerAIPattern},
	{EventSecurityVulnerability, LayerAIPattern},
	{EventPerformanceImprovement, LayerAIPattern},
	{EventPerformanceRegression, LayerAIPattern},
	{EventAPIBreakingChange, LayerAIPattern},
	{EventAPIEnhancement, LayerAIPattern},
	{EventCodeSimplification, LayerAIPattern},
	{EventCodeComplication, LayerAIPattern},
	{EventErrorHandlingImprovement, LayerAIPattern},
	{EventConcurrencyIntroduction, LayerAIPattern},
	{EventArchitectureChange, LayerAIPattern},

	{EventAlgorithmOptimized, LayerTrueAI},
	{EventDesignPatternApplied, LayerTrueAI},
	{EventManualAnalysis, LayerTrueAI},

	{EventParseDegraded, LayerCore},
}

var (
	alphabetLayer map[EventType]Layer
	alphabetRank  map[EventType]int
)

func init() {
	alphabetLayer = make(map[EventType]Layer, len(alphabet))
	alphabetRank = make(map[EventType]int, len(alphabet))
	for i, entry := range alphabet {
		alphabetLayer[entry.Type] = entry.Layer
		alphabetRank[entry.Type] = i
	}
}

// Known reports whether t is part of the closed alphabet.
func Known(t EventType) bool {
	_, ok := alphabetLayer[t]
	return ok
}

// LayerOf returns the layer an event type belongs to.
// Unknown types map to the empty layer.
func LayerOf(t EventType) Layer {
	return alphabetLayer[t]
}

// Rank returns the declaration-order position of t within the alphabet,
// used for stable ordering of events emitted for one matched pair.
// Unknown types sort last.
func Rank(t EventType) int {
	if r, ok := alphabetRank[t]; ok {
		return r
	}
	return len(alphabet)
}

// Alphabet returns a copy of all known event types in declaration order.
func Alphabet() []EventType {
	out := make([]EventType, len(alphabet))
	for i, entry := range alphabet {
		out[i] = entry.Type
	}
	return out
}

// AlphabetByLayer returns the event types emitted by the given layer,
// in declaration order.
func AlphabetByLayer(l Layer) []EventType {
	var out []EventType
	for _, entry := range alphabet {
		if entry.Layer == l {
			out = append(out, entry.Type)
		}
	}
	return out
}

func (t EventType) String() string {
	return string(t)
}
