package steps

import "prereport-service/internal/models"

// Fields the intelligence assessment step must carry to count as complete.
var intelligenceAssessmentFields = []string{
	"scopeOfOperation",
	"intelligenceNature",
	"verificationStatus",
	"riskLevel",
	"sourceReliability",
	"informationAccuracy",
}

func trueBuddyLeadSteps() []*Definition {
	return []*Definition{
		step(1, "Lead Source", false, whenPresent,
			oneOf("leadSource", "Where the intelligence came from", models.LeadSources),
			text("sourceName", "Source name or code"),
			phone("sourceContact", "Source phone number"),
			date("dateInfoReceived", "Date the lead was received (YYYY-MM-DD)"),
		),
		step(2, "Target Identification", false, whenPresent,
			text("entityName", "Name of the target entity"),
			text("personName", "Name of the target person"),
			phoneList("contactNumbers", "Known contact numbers"),
			text("addressLine", "Street address"),
			text("city", "City"),
			text("state", "State"),
			text("pincode", "Postal code"),
		),
		step(3, "Intelligence Assessment", false, allOf(intelligenceAssessmentFields...),
			required(oneOf("scopeOfOperation", "Geographic scope of the operation", models.ScopesOfOperation)),
			required(oneOf("intelligenceNature", "Nature of the intelligence", models.IntelligenceNatures)),
			required(oneOf("verificationStatus", "Verification status", models.VerificationStatuses)),
			required(oneOf("riskLevel", "Assessed risk level", models.RiskLevels)),
			required(oneOf("sourceReliability", "Reliability of the source", models.SourceReliabilities)),
			required(oneOf("informationAccuracy", "Accuracy of the information", models.InformationAccuracies)),
		),
		step(4, "Product Details", false, whenPresent,
			oneOf("productCategory", "Product category", models.ProductCategories),
			text("productName", "Product name"),
			text("brandName", "Brand affected"),
			count("suspectedQuantity", "Suspected quantity in units"),
		),
		step(5, "Online Presence", true, whenPresent,
			url("websiteUrl", "Target website"),
			urlList("marketplaceLinks", "Marketplace listings"),
			urlList("socialMediaLinks", "Social media profiles"),
		),
		step(6, "Supply Chain", true, whenPresent,
			oneOf("supplyChainRole", "Target's role in the supply chain", models.SupplyChainRoles),
			text("sourceLocation", "Where goods are sourced from"),
			longText("distributionNetwork", "Known distribution network", 0),
		),
		step(7, "Infringement Details", false, whenPresent,
			oneOf("infringementType", "Type of infringement", models.InfringementTypes),
			longText("infringementDescription", "How the infringement manifests", 0),
			text("estimatedScale", "Estimated scale of operation"),
		),
		step(8, "Recommended Action", false, whenPresent,
			oneOf("recommendedAction", "Recommended next action", models.RecommendedActions),
			longText("actionJustification", "Why this action is recommended", 0),
		),
		step(9, "Confidentiality", false, allOf("confidentialityNote"),
			required(longText("confidentialityNote", "Handling instructions for the source", 0)),
			textList("restrictedRecipients", "Who may not see this report"),
		),
		step(10, "Remarks", false, allOf("remarks"),
			required(longText("remarks", "Investigator remarks", 10)),
		),
		step(11, "Disclaimer", false, allOf("customDisclaimer"),
			required(longText("customDisclaimer", "Report disclaimer", 20)),
		),
	}
}
