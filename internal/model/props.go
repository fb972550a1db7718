package model

// Property names shared by skeleton materialization, binding and unbinding.
const (
	PropRawType                   = "rawType"
	PropRawTypeName               = "rawTypeName"
	PropTypeParameter             = "typeParameter"
	PropTypeParameterName         = "typeParameterName"
	PropTypeArguments             = "typeArguments"
	PropMultiplicityArguments     = "multiplicityArguments"
	PropFunctionType              = "functionType"
	PropLowerBound                = "lowerBound"
	PropUpperBound                = "upperBound"
	PropMultiplicityParameter     = "multiplicityParameter"
	PropMultiplicityParameterName = "multiplicityParameterName"
	PropSourceText                = "sourceText"

	PropParameters             = "parameters"
	PropReturnType             = "returnType"
	PropReturnMultiplicity     = "returnMultiplicity"
	PropGenericType            = "genericType"
	PropMultiplicity           = "multiplicity"
	PropTypeParameters         = "typeParameters"
	PropMultiplicityParameters = "multiplicityParameters"
	PropGeneralizations        = "generalizations"
	PropProperties             = "properties"
	PropPropertiesFromAssocs   = "propertiesFromAssociations"
	PropValues                 = "values"
	PropExpressionSequence     = "expressionSequence"

	PropFunctionName    = "functionName"
	PropDescriptor      = "descriptor"
	PropArguments       = "parametersValues"
	PropExpression      = "expression"
	PropKeyValues       = "keyValues"
	PropClassName       = "className"
	PropPropertyName    = "propertyName"
	PropEnumerationName = "enumerationName"
	PropValueName       = "valueName"

	// Resolved references. Each is written with a usage on its target.
	PropFunc                          = "func"
	PropClass                         = "class"
	PropProperty                      = "property"
	PropEnumeration                   = "enumeration"
	PropValue                         = "value"
	PropInjectedInto                  = "injectedInto"
	PropTypeParameterBindings         = "typeParameterBindings"
	PropMultiplicityParameterBindings = "multiplicityParameterBindings"

	// Inferred structure. Each holds child nodes created during checking.
	PropResultType                    = "resultType"
	PropResultMultiplicity            = "resultMultiplicity"
	PropResolvedTypeArguments         = "resolvedTypeArguments"
	PropResolvedMultiplicityArguments = "resolvedMultiplicityArguments"
	PropInferredType                  = "inferredType"
	PropInferredMultiplicity          = "inferredMultiplicity"

	// Source node properties.
	PropText         = "text"
	PropContentHash  = "contentHash"
	PropImmutable    = "immutable"
	PropCompiled     = "compiled"
	PropNewInstances = "newInstances"
	PropImports      = "imports"
)

// ResolvedProps are reference properties written by binding and removed by
// unbinding together with their usages.
var ResolvedProps = []string{
	PropRawType,
	PropTypeParameter,
	PropMultiplicityParameter,
	PropFunc,
	PropClass,
	PropProperty,
	PropEnumeration,
	PropValue,
	PropInjectedInto,
	PropTypeParameterBindings,
	PropMultiplicityParameterBindings,
}

// InferredProps hold child nodes that exist only while an element is bound.
var InferredProps = []string{
	PropResultType,
	PropResultMultiplicity,
	PropResolvedTypeArguments,
	PropResolvedMultiplicityArguments,
	PropInferredType,
	PropInferredMultiplicity,
}
